package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/adoption"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/events"
)

type AdoptionRepo struct {
	view
}

var _ adoption.Repository = (*AdoptionRepo)(nil)

func (r *AdoptionRepo) GetPetByID(_ context.Context, id uuid.UUID) (*clinic.Pet, error) {
	return r.getPet(id)
}

// GetPetForUpdate needs no row lock here: transactions are already
// serialized.
func (r *AdoptionRepo) GetPetForUpdate(_ context.Context, id uuid.UUID) (*clinic.Pet, error) {
	return r.getPet(id)
}

func (r *AdoptionRepo) UpdatePet(_ context.Context, p clinic.Pet) (*clinic.Pet, error) {
	return r.updatePet(p)
}

func (r *AdoptionRepo) GetRequestByID(_ context.Context, id uuid.UUID) (*adoption.Request, error) {
	var out *adoption.Request
	err := r.read(func(d *dataset) error {
		req, ok := d.requests[id]
		if !ok {
			return adoption.ErrRequestNotFound
		}
		out = &req
		return nil
	})
	return out, err
}

func (r *AdoptionRepo) GetRequestForUpdate(ctx context.Context, id uuid.UUID) (*adoption.Request, error) {
	return r.GetRequestByID(ctx, id)
}

func (r *AdoptionRepo) FindPendingRequest(_ context.Context, userID, petID uuid.UUID) (*adoption.Request, error) {
	var out *adoption.Request
	err := r.read(func(d *dataset) error {
		for _, req := range d.requests {
			if req.UserID == userID && req.PetID == petID && req.Status == adoption.StatusPending {
				out = &req
				return nil
			}
		}
		return adoption.ErrRequestNotFound
	})
	return out, err
}

func (r *AdoptionRepo) CountActiveRequests(_ context.Context, petID, excludeID uuid.UUID) (int, error) {
	n := 0
	err := r.read(func(d *dataset) error {
		n = countActive(d, petID, excludeID)
		return nil
	})
	return n, err
}

func countActive(d *dataset, petID, excludeID uuid.UUID) int {
	n := 0
	for id, req := range d.requests {
		if id != excludeID && req.PetID == petID && req.Status.Active() {
			n++
		}
	}
	return n
}

func (r *AdoptionRepo) CreateRequest(_ context.Context, req adoption.Request) (*adoption.Request, error) {
	err := r.write(func(d *dataset) error {
		if _, ok := d.pets[req.PetID]; !ok {
			return clinic.ErrPetNotFound
		}
		if req.Status.Active() && countActive(d, req.PetID, req.ID) > 0 {
			return adoption.ErrActiveRequestExists
		}
		if req.ID == uuid.Nil {
			req.ID = uuid.New()
		}
		now := r.now()
		if req.RequestedAt.IsZero() {
			req.RequestedAt = now
		}
		req.UpdatedAt = now
		d.requests[req.ID] = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *AdoptionRepo) UpdateRequest(_ context.Context, req adoption.Request) (*adoption.Request, error) {
	err := r.write(func(d *dataset) error {
		cur, ok := d.requests[req.ID]
		if !ok {
			return adoption.ErrRequestNotFound
		}
		if req.Status.Active() && countActive(d, req.PetID, req.ID) > 0 {
			return adoption.ErrActiveRequestExists
		}
		req.RequestedAt = cur.RequestedAt
		req.UpdatedAt = r.now()
		d.requests[req.ID] = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *AdoptionRepo) ListRequests(_ context.Context, f adoption.Filter) ([]adoption.Request, error) {
	var out []adoption.Request
	err := r.read(func(d *dataset) error {
		for _, req := range d.requests {
			if f.Matches(&req) {
				out = append(out, req)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}

func (r *AdoptionRepo) InsertEvent(_ context.Context, rec events.Record) error {
	return r.insertEvent(rec)
}

func (r *AdoptionRepo) InTx(ctx context.Context, fn func(tx adoption.Repository) error) error {
	return r.nested(ctx, func(v view) error {
		return fn(&AdoptionRepo{v})
	})
}
