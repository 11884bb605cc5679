package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/petssecrets/veterinaria-core/internal/appointment"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/events"
)

const appointmentColumns = `id, user_id, pet_id, service_id, location_id, date, time, status, notes, created_at, updated_at`

const microsPerSecond = 1_000_000

func toPgTime(t appointment.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * microsPerSecond, Valid: true}
}

func fromPgTime(t pgtype.Time) appointment.TimeOfDay {
	return appointment.TimeOfDay(t.Microseconds / microsPerSecond)
}

func scanAppointment(row pgx.Row) (*appointment.Appointment, error) {
	var a appointment.Appointment
	var tod pgtype.Time

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.PetID,
		&a.ServiceID,
		&a.LocationID,
		&a.Date,
		&tod,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, appointment.ErrAppointmentNotFound
		}
		return nil, mapConstraint(err)
	}

	a.Date = appointment.DateOf(a.Date)
	a.Time = fromPgTime(tod)
	return &a, nil
}

type AppointmentRepo struct {
	conn
}

var _ appointment.Repository = (*AppointmentRepo)(nil)

func (r *AppointmentRepo) GetPetByID(ctx context.Context, id uuid.UUID) (*clinic.Pet, error) {
	return r.getPet(ctx, id, false)
}

func (r *AppointmentRepo) GetServiceByID(ctx context.Context, id uuid.UUID) (*clinic.VetService, error) {
	return scanService(r.q.QueryRow(ctx, `SELECT `+serviceColumns+` FROM vet_services WHERE id = $1`, id))
}

func (r *AppointmentRepo) GetLocationByID(ctx context.Context, id uuid.UUID) (*clinic.Location, error) {
	return scanLocation(r.q.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
}

func (r *AppointmentRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return scanAppointment(r.q.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
}

func (r *AppointmentRepo) FindActiveInSlot(ctx context.Context, slot appointment.Slot, excludeID uuid.UUID) (*appointment.Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE location_id = $1
		  AND date = $2
		  AND time = $3
		  AND status <> 'cancelled'
		  AND id <> $4
		LIMIT 1
	`, slot.LocationID, slot.Date, toPgTime(slot.Time), excludeID)
	return scanAppointment(row)
}

func (r *AppointmentRepo) CreateAppointment(ctx context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.UserID, a.PetID, a.ServiceID, a.LocationID,
		appointment.DateOf(a.Date), toPgTime(a.Time), a.Status, a.Notes)
	return scanAppointment(row)
}

func (r *AppointmentRepo) UpdateAppointment(ctx context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET date = $2,
		    time = $3,
		    status = $4,
		    notes = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		a.ID, appointment.DateOf(a.Date), toPgTime(a.Time), a.Status, a.Notes)
	return scanAppointment(row)
}

func (r *AppointmentRepo) ListAppointments(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error) {
	sql, args := appointmentQuery(f)

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collect(rows, scanAppointment)
}

func appointmentQuery(f appointment.Filter) (string, []any) {
	var w where
	if f.Status != nil {
		w.add("status = $%d", string(*f.Status))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			statuses = append(statuses, string(st))
		}
		w.add("status = ANY($%d)", statuses)
	}
	if f.UserID != nil {
		w.add("user_id = $%d", *f.UserID)
	}
	if f.PetID != nil {
		w.add("pet_id = $%d", *f.PetID)
	}
	if f.LocationID != nil {
		w.add("location_id = $%d", *f.LocationID)
	}
	if f.From != nil {
		w.add("date >= $%d", appointment.DateOf(*f.From))
	}
	if f.To != nil {
		w.add("date <= $%d", appointment.DateOf(*f.To))
	}

	order := " ORDER BY date ASC, time ASC, created_at ASC"
	if f.Order == appointment.OrderLatest {
		order = " ORDER BY date DESC, time DESC, created_at ASC"
	}

	return `SELECT ` + appointmentColumns + ` FROM appointments` + w.String() + order, w.args
}

func (r *AppointmentRepo) InsertEvent(ctx context.Context, rec events.Record) error {
	return r.insertEvent(ctx, rec)
}

func (r *AppointmentRepo) InTx(ctx context.Context, fn func(tx appointment.Repository) error) error {
	return r.withTx(ctx, func(c conn) error {
		return fn(&AppointmentRepo{c})
	})
}
