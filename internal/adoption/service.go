package adoption

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/apperr"
	"github.com/petssecrets/veterinaria-core/internal/auth"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/events"
)

const aggregate = "adoption"

var (
	ErrPetNotAdoptable      = apperr.New(apperr.ErrNotAvailable, "pet is not available for adoption")
	ErrPendingRequestExists = apperr.New(apperr.ErrDuplicateRequest, "a pending request for this pet already exists")
	ErrNotRequester         = apperr.New(apperr.ErrPermission, "only the applicant can cancel this request")
	ErrNotRequestOwner      = apperr.New(apperr.ErrPermission, "adoption request belongs to another user")
	ErrNotPending           = apperr.New(apperr.ErrInvalidState, "only pending requests can be cancelled")
	ErrInvalidTransition    = apperr.New(apperr.ErrInvalidState, "adoption status transition not allowed")
)

type Service struct {
	repo   Repository
	events *events.Emitter
	now    func() time.Time
}

func NewService(repo Repository, pub events.Publisher) *Service {
	return &Service{
		repo:   repo,
		events: events.NewEmitter(repo, pub),
		now:    time.Now,
	}
}

// CreateRequest files a pending adoption request and puts the pet in process.
func (s *Service) CreateRequest(ctx context.Context, actor auth.Actor, petID uuid.UUID, q Questionnaire) (*Request, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var created *Request
	err := s.repo.InTx(ctx, func(tx Repository) error {
		pet, err := tx.GetPetForUpdate(ctx, petID)
		if err != nil {
			return fmt.Errorf("load pet: %w", err)
		}
		if !pet.Active {
			return clinic.ErrPetNotFound
		}
		if pet.Status != clinic.AdoptionAvailable {
			return ErrPetNotAdoptable
		}

		existing, err := tx.FindPendingRequest(ctx, actor.UserID, petID)
		if err != nil && !errors.Is(err, ErrRequestNotFound) {
			return fmt.Errorf("check pending request: %w", err)
		}
		if existing != nil {
			return ErrPendingRequestExists
		}

		now := s.now()
		created, err = tx.CreateRequest(ctx, Request{
			ID:            uuid.New(),
			UserID:        actor.UserID,
			PetID:         petID,
			Status:        StatusPending,
			Questionnaire: q,
			RequestedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		pet.SetStatus(clinic.AdoptionInProcess, now)
		if _, err := tx.UpdatePet(ctx, *pet); err != nil {
			return fmt.Errorf("mark pet in process: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, created, events.AdoptionRequested, nil)
	return created, nil
}

type StatusUpdate struct {
	Status          RequestStatus
	RejectionReason string
	Notes           string
}

// UpdateStatus moves a request through its state machine and applies the
// matching change to the pet in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, upd StatusUpdate) (*Request, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	var (
		updated *Request
		prev    RequestStatus
	)
	err := s.repo.InTx(ctx, func(tx Repository) error {
		req, err := tx.GetRequestForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("load request: %w", err)
		}
		if !req.Status.CanTransitionTo(upd.Status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, req.Status, upd.Status)
		}
		prev = req.Status

		pet, err := tx.GetPetForUpdate(ctx, req.PetID)
		if err != nil {
			return fmt.Errorf("load pet: %w", err)
		}

		now := s.now()
		req.Status = upd.Status
		if upd.Notes != "" {
			req.Notes = upd.Notes
		}

		switch upd.Status {
		case StatusApproved:
			req.ApprovedAt = &now
			pet.TransferTo(req.UserID, now)
			if _, err := tx.UpdatePet(ctx, *pet); err != nil {
				return fmt.Errorf("transfer pet: %w", err)
			}
		case StatusCompleted:
			// already adopted at approval; written again on completion
			pet.SetStatus(clinic.AdoptionAdopted, now)
			if _, err := tx.UpdatePet(ctx, *pet); err != nil {
				return fmt.Errorf("mark pet adopted: %w", err)
			}
		case StatusRejected:
			req.RejectionReason = upd.RejectionReason
		}

		updated, err = tx.UpdateRequest(ctx, *req)
		if err != nil {
			return fmt.Errorf("update request: %w", err)
		}

		if upd.Status == StatusRejected {
			return s.releasePet(ctx, tx, pet, req.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, updated, events.AdoptionStatusChanged, map[string]any{"from": prev})
	return updated, nil
}

// Cancel lets the applicant withdraw a pending request. The request ends up
// rejected and the pet is released when nothing else claims it.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Request, error) {
	var updated *Request
	err := s.repo.InTx(ctx, func(tx Repository) error {
		req, err := tx.GetRequestForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("load request: %w", err)
		}
		if req.UserID != actor.UserID {
			return ErrNotRequester
		}
		if req.Status != StatusPending {
			return ErrNotPending
		}

		pet, err := tx.GetPetForUpdate(ctx, req.PetID)
		if err != nil {
			return fmt.Errorf("load pet: %w", err)
		}

		req.Status = StatusRejected
		updated, err = tx.UpdateRequest(ctx, *req)
		if err != nil {
			return fmt.Errorf("update request: %w", err)
		}

		return s.releasePet(ctx, tx, pet, req.ID)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, updated, events.AdoptionCancelled, nil)
	return updated, nil
}

// releasePet puts the pet back up for adoption unless another active request
// still claims it.
func (s *Service) releasePet(ctx context.Context, tx Repository, pet *clinic.Pet, requestID uuid.UUID) error {
	others, err := tx.CountActiveRequests(ctx, pet.ID, requestID)
	if err != nil {
		return fmt.Errorf("count active requests: %w", err)
	}
	if others > 0 {
		return nil
	}

	pet.SetStatus(clinic.AdoptionAvailable, s.now())
	if _, err := tx.UpdatePet(ctx, *pet); err != nil {
		return fmt.Errorf("release pet: %w", err)
	}
	return nil
}

// CanAdopt reports whether userID could file a request for petID right now.
// A missing pet is simply not adoptable.
func (s *Service) CanAdopt(ctx context.Context, userID, petID uuid.UUID) (bool, error) {
	pet, err := s.repo.GetPetByID(ctx, petID)
	if errors.Is(err, clinic.ErrPetNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load pet: %w", err)
	}
	if !pet.Adoptable() {
		return false, nil
	}

	existing, err := s.repo.FindPendingRequest(ctx, userID, petID)
	if err != nil && !errors.Is(err, ErrRequestNotFound) {
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return existing == nil, nil
}

// SetPetStatus is the explicit admin path for changing a pet's adoption
// status outside of a request.
func (s *Service) SetPetStatus(ctx context.Context, actor auth.Actor, petID uuid.UUID, status clinic.AdoptionStatus) (*clinic.Pet, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	var (
		updated *clinic.Pet
		prev    clinic.AdoptionStatus
	)
	err := s.repo.InTx(ctx, func(tx Repository) error {
		pet, err := tx.GetPetForUpdate(ctx, petID)
		if err != nil {
			return fmt.Errorf("load pet: %w", err)
		}
		prev = pet.Status

		pet.SetStatus(status, s.now())
		updated, err = tx.UpdatePet(ctx, *pet)
		if err != nil {
			return fmt.Errorf("update pet: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(ctx, "pet", updated.ID, events.PetStatusChanged, map[string]any{
		"from": prev,
		"to":   updated.Status,
	})
	return updated, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Request, error) {
	req, err := s.repo.GetRequestByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if !actor.CanManage(req.UserID) {
		return nil, ErrNotRequestOwner
	}
	return req, nil
}

// ListMine returns the actor's requests, newest first.
func (s *Service) ListMine(ctx context.Context, actor auth.Actor) ([]Request, error) {
	userID := actor.UserID
	return s.list(ctx, Filter{UserID: &userID})
}

// Search lists requests across all users, newest first. Admin only.
func (s *Service) Search(ctx context.Context, actor auth.Actor, f Filter) ([]Request, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.list(ctx, f)
}

func (s *Service) list(ctx context.Context, f Filter) ([]Request, error) {
	reqs, err := s.repo.ListRequests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}

func (s *Service) emit(ctx context.Context, r *Request, eventType string, extra map[string]any) {
	data := map[string]any{
		"user_id": r.UserID,
		"pet_id":  r.PetID,
		"status":  r.Status,
	}
	for k, v := range extra {
		data[k] = v
	}
	s.events.Emit(ctx, aggregate, r.ID, eventType, data)
}
