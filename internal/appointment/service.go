package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/apperr"
	"github.com/petssecrets/veterinaria-core/internal/auth"
	"github.com/petssecrets/veterinaria-core/internal/config"
	"github.com/petssecrets/veterinaria-core/internal/events"
	redisclient "github.com/petssecrets/veterinaria-core/internal/redis"
)

const aggregate = "appointment"

var (
	ErrPetNotOwned         = apperr.New(apperr.ErrOwnership, "pet does not belong to the user")
	ErrNotAppointmentOwner = apperr.New(apperr.ErrPermission, "appointment belongs to another user")
	ErrSlotBeingBooked     = apperr.New(apperr.ErrSlotConflict, "slot is currently being booked, please retry")
	ErrSlotInPast          = apperr.New(apperr.ErrPastDate, "appointments cannot be booked in the past")
	ErrNotReschedulable    = apperr.New(apperr.ErrInvalidState, "completed or cancelled appointments cannot be rescheduled")
	ErrInvalidTime         = apperr.New(apperr.ErrInvalidInput, "time of day out of range")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	events *events.Emitter
	loc    *time.Location
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, pub events.Publisher, cfg config.Config) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:   repo,
		locker: locker,
		events: events.NewEmitter(repo, pub),
		loc:    loc,
		now:    time.Now,
	}
}

type ScheduleInput struct {
	PetID      uuid.UUID
	ServiceID  uuid.UUID
	LocationID uuid.UUID
	Date       time.Time
	Time       TimeOfDay
	Notes      string
}

// Schedule books a free slot for one of the actor's pets. The slot check and
// the insert run under the slot lock inside one transaction.
func (s *Service) Schedule(ctx context.Context, actor auth.Actor, in ScheduleInput) (*Appointment, error) {
	if !in.Time.Valid() {
		return nil, ErrInvalidTime
	}

	pet, err := s.repo.GetPetByID(ctx, in.PetID)
	if err != nil {
		return nil, fmt.Errorf("load pet: %w", err)
	}
	if !pet.OwnedBy(actor.UserID) {
		return nil, ErrPetNotOwned
	}
	if _, err := s.repo.GetServiceByID(ctx, in.ServiceID); err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}
	if _, err := s.repo.GetLocationByID(ctx, in.LocationID); err != nil {
		return nil, fmt.Errorf("load location: %w", err)
	}

	slot := NewSlot(in.LocationID, in.Date, in.Time)

	var created *Appointment
	err = s.withSlot(ctx, slot, func(ctx context.Context, tx Repository) error {
		if err := ensureFree(ctx, tx, slot, uuid.Nil); err != nil {
			return err
		}
		if s.inPast(slot) {
			return ErrSlotInPast
		}

		appt, err := tx.CreateAppointment(ctx, Appointment{
			ID:         uuid.New(),
			UserID:     actor.UserID,
			PetID:      in.PetID,
			ServiceID:  in.ServiceID,
			LocationID: in.LocationID,
			Date:       slot.Date,
			Time:       slot.Time,
			Status:     StatusPending,
			Notes:      in.Notes,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, created, events.AppointmentScheduled, nil)
	return created, nil
}

// UpdateStatus is the administrative override. It overwrites the status and
// any optional field supplied. No transition table is enforced.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, status AppointmentStatus, upd UpdateFields) (*Appointment, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if upd.Time != nil && !upd.Time.Valid() {
		return nil, ErrInvalidTime
	}

	var (
		updated *Appointment
		prev    AppointmentStatus
	)
	err := s.repo.InTx(ctx, func(tx Repository) error {
		appt, err := tx.GetAppointmentByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		prev = appt.Status

		appt.Status = status
		if upd.Date != nil {
			appt.Date = DateOf(*upd.Date)
		}
		if upd.Time != nil {
			appt.Time = *upd.Time
		}
		if upd.Notes != nil {
			appt.Notes = *upd.Notes
		}

		updated, err = tx.UpdateAppointment(ctx, *appt)
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, updated, events.AppointmentStatusChanged, map[string]any{"from": prev})
	return updated, nil
}

// Reschedule moves an appointment to a new date and time at the same
// location and resets it to pending.
func (s *Service) Reschedule(ctx context.Context, actor auth.Actor, id uuid.UUID, date time.Time, t TimeOfDay) (*Appointment, error) {
	if !t.Valid() {
		return nil, ErrInvalidTime
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !actor.CanManage(appt.UserID) {
		return nil, ErrNotAppointmentOwner
	}
	if !appt.Status.Reschedulable() {
		return nil, ErrNotReschedulable
	}

	from := appt.Slot()
	slot := NewSlot(appt.LocationID, date, t)

	var updated *Appointment
	err = s.withSlot(ctx, slot, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetAppointmentByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		if !current.Status.Reschedulable() {
			return ErrNotReschedulable
		}
		if err := ensureFree(ctx, tx, slot, id); err != nil {
			return err
		}
		if s.inPast(slot) {
			return ErrSlotInPast
		}

		current.Date = slot.Date
		current.Time = slot.Time
		current.Status = StatusPending

		updated, err = tx.UpdateAppointment(ctx, *current)
		if err != nil {
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, updated, events.AppointmentRescheduled, map[string]any{
		"from_date": FormatDate(from.Date),
		"from_time": from.Time.String(),
	})
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	var updated *Appointment
	err := s.repo.InTx(ctx, func(tx Repository) error {
		appt, err := tx.GetAppointmentByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		if !actor.CanManage(appt.UserID) {
			return ErrNotAppointmentOwner
		}

		appt.Status = StatusCancelled
		updated, err = tx.UpdateAppointment(ctx, *appt)
		if err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, updated, events.AppointmentCancelled, nil)
	return updated, nil
}

// CheckAvailability reports whether no active appointment holds the slot.
func (s *Service) CheckAvailability(ctx context.Context, slot Slot) (bool, error) {
	if !slot.Time.Valid() {
		return false, ErrInvalidTime
	}
	existing, err := s.repo.FindActiveInSlot(ctx, slot, uuid.Nil)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return false, fmt.Errorf("check slot: %w", err)
	}
	return existing == nil, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if !actor.CanManage(appt.UserID) {
		return nil, ErrNotAppointmentOwner
	}
	return appt, nil
}

// ListMine returns the actor's appointments, latest first.
func (s *Service) ListMine(ctx context.Context, actor auth.Actor) ([]Appointment, error) {
	userID := actor.UserID
	return s.list(ctx, Filter{UserID: &userID, Order: OrderLatest})
}

// ListUpcoming returns the actor's pending and confirmed appointments from
// today on, soonest first.
func (s *Service) ListUpcoming(ctx context.Context, actor auth.Actor) ([]Appointment, error) {
	userID := actor.UserID
	today := DateOf(s.now().In(s.loc))
	return s.list(ctx, Filter{
		UserID:   &userID,
		Statuses: []AppointmentStatus{StatusPending, StatusConfirmed},
		From:     &today,
		Order:    OrderSoonest,
	})
}

// Search lists appointments across all users. Admin only.
func (s *Service) Search(ctx context.Context, actor auth.Actor, f Filter) ([]Appointment, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f Filter) ([]Appointment, error) {
	appts, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) withSlot(ctx context.Context, slot Slot, fn func(ctx context.Context, tx Repository) error) error {
	err := s.locker.WithLock(ctx, slot.Key(), func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Repository) error {
			return fn(lockCtx, tx)
		})
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	return err
}

func ensureFree(ctx context.Context, tx Repository, slot Slot, excludeID uuid.UUID) error {
	existing, err := tx.FindActiveInSlot(ctx, slot, excludeID)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return fmt.Errorf("check slot: %w", err)
	}
	if existing != nil {
		return ErrSlotTaken
	}
	return nil
}

func (s *Service) inPast(slot Slot) bool {
	return slot.StartsAt(s.loc).Before(s.now())
}

func (s *Service) emit(ctx context.Context, a *Appointment, eventType string, extra map[string]any) {
	data := map[string]any{
		"user_id":     a.UserID,
		"pet_id":      a.PetID,
		"service_id":  a.ServiceID,
		"location_id": a.LocationID,
		"date":        FormatDate(a.Date),
		"time":        a.Time.String(),
		"status":      a.Status,
	}
	for k, v := range extra {
		data[k] = v
	}
	s.events.Emit(ctx, aggregate, a.ID, eventType, data)
}
