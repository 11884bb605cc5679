package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/petssecrets/veterinaria-core/internal/adoption"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/events"
)

const requestColumns = `id, user_id, pet_id, status, experience, housing, other_pets, work_schedule, reason,
	emergency_contact, vet_reference, accepts_terms, accepts_visit, rejection_reason, notes,
	requested_at, approved_at, updated_at`

func scanRequest(row pgx.Row) (*adoption.Request, error) {
	var req adoption.Request
	q := &req.Questionnaire

	err := row.Scan(
		&req.ID,
		&req.UserID,
		&req.PetID,
		&req.Status,
		&q.Experience,
		&q.Housing,
		&q.OtherPets,
		&q.WorkSchedule,
		&q.Reason,
		&q.EmergencyContact,
		&q.VetReference,
		&q.AcceptsTerms,
		&q.AcceptsVisit,
		&req.RejectionReason,
		&req.Notes,
		&req.RequestedAt,
		&req.ApprovedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, adoption.ErrRequestNotFound
		}
		return nil, mapConstraint(err)
	}

	return &req, nil
}

type AdoptionRepo struct {
	conn
}

var _ adoption.Repository = (*AdoptionRepo)(nil)

func (r *AdoptionRepo) GetPetByID(ctx context.Context, id uuid.UUID) (*clinic.Pet, error) {
	return r.getPet(ctx, id, false)
}

func (r *AdoptionRepo) GetPetForUpdate(ctx context.Context, id uuid.UUID) (*clinic.Pet, error) {
	return r.getPet(ctx, id, true)
}

func (r *AdoptionRepo) UpdatePet(ctx context.Context, p clinic.Pet) (*clinic.Pet, error) {
	return r.updatePet(ctx, p)
}

func (r *AdoptionRepo) GetRequestByID(ctx context.Context, id uuid.UUID) (*adoption.Request, error) {
	return scanRequest(r.q.QueryRow(ctx, `SELECT `+requestColumns+` FROM adoption_requests WHERE id = $1`, id))
}

func (r *AdoptionRepo) GetRequestForUpdate(ctx context.Context, id uuid.UUID) (*adoption.Request, error) {
	sql := `SELECT ` + requestColumns + ` FROM adoption_requests WHERE id = $1`
	if r.inTx {
		sql += ` FOR UPDATE`
	}
	return scanRequest(r.q.QueryRow(ctx, sql, id))
}

func (r *AdoptionRepo) FindPendingRequest(ctx context.Context, userID, petID uuid.UUID) (*adoption.Request, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM adoption_requests
		WHERE user_id = $1
		  AND pet_id = $2
		  AND status = 'pending'
		LIMIT 1
	`, userID, petID)
	return scanRequest(row)
}

func (r *AdoptionRepo) CountActiveRequests(ctx context.Context, petID, excludeID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT count(*)
		FROM adoption_requests
		WHERE pet_id = $1
		  AND id <> $2
		  AND status IN ('pending', 'approved')
	`, petID, excludeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active requests: %w", err)
	}
	return n, nil
}

func (r *AdoptionRepo) CreateRequest(ctx context.Context, req adoption.Request) (*adoption.Request, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	q := req.Questionnaire

	row := r.q.QueryRow(ctx, `
		INSERT INTO adoption_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, COALESCE($16, now()), $17, now())
		RETURNING `+requestColumns,
		req.ID, req.UserID, req.PetID, req.Status,
		q.Experience, q.Housing, q.OtherPets, q.WorkSchedule, q.Reason,
		q.EmergencyContact, q.VetReference, q.AcceptsTerms, q.AcceptsVisit,
		req.RejectionReason, req.Notes, nullableTime(req.RequestedAt), req.ApprovedAt)
	return scanRequest(row)
}

func (r *AdoptionRepo) UpdateRequest(ctx context.Context, req adoption.Request) (*adoption.Request, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE adoption_requests
		SET status = $2,
		    rejection_reason = $3,
		    notes = $4,
		    approved_at = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+requestColumns,
		req.ID, req.Status, req.RejectionReason, req.Notes, req.ApprovedAt)
	return scanRequest(row)
}

func (r *AdoptionRepo) ListRequests(ctx context.Context, f adoption.Filter) ([]adoption.Request, error) {
	sql, args := requestQuery(f)

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list adoption requests: %w", err)
	}
	return collect(rows, scanRequest)
}

func requestQuery(f adoption.Filter) (string, []any) {
	var w where
	if f.Status != nil {
		w.add("status = $%d", string(*f.Status))
	}
	if f.UserID != nil {
		w.add("user_id = $%d", *f.UserID)
	}
	if f.PetID != nil {
		w.add("pet_id = $%d", *f.PetID)
	}
	if f.Experience != nil {
		w.add("experience = $%d", string(*f.Experience))
	}
	if f.Housing != nil {
		w.add("housing = $%d", string(*f.Housing))
	}

	return `SELECT ` + requestColumns + ` FROM adoption_requests` + w.String() + ` ORDER BY requested_at DESC`, w.args
}

func (r *AdoptionRepo) InsertEvent(ctx context.Context, rec events.Record) error {
	return r.insertEvent(ctx, rec)
}

func (r *AdoptionRepo) InTx(ctx context.Context, fn func(tx adoption.Repository) error) error {
	return r.withTx(ctx, func(c conn) error {
		return fn(&AdoptionRepo{c})
	})
}
