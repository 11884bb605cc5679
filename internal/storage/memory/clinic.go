package memory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/seed"
)

var errDuplicateEmail = errors.New("email already registered")

// ClinicRepo manages the reference data the domain services read: users,
// locations, services and pets.
type ClinicRepo struct {
	view
}

func (r *ClinicRepo) CreateUser(_ context.Context, u clinic.User) (*clinic.User, error) {
	err := r.write(func(d *dataset) error {
		for _, other := range d.users {
			if strings.EqualFold(other.Email, u.Email) {
				return errDuplicateEmail
			}
		}
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		u.CreatedAt = r.now()
		d.users[u.ID] = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *ClinicRepo) GetUserByID(_ context.Context, id uuid.UUID) (*clinic.User, error) {
	var out *clinic.User
	err := r.read(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return clinic.ErrUserNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *ClinicRepo) CreateLocation(_ context.Context, l clinic.Location) (*clinic.Location, error) {
	err := r.write(func(d *dataset) error {
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.CreatedAt = r.now()
		d.locations[l.ID] = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ClinicRepo) CreateService(_ context.Context, s clinic.VetService) (*clinic.VetService, error) {
	err := r.write(func(d *dataset) error {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		s.CreatedAt = r.now()
		d.services[s.ID] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ClinicRepo) CreatePet(_ context.Context, p clinic.Pet) (*clinic.Pet, error) {
	err := r.write(func(d *dataset) error {
		if p.OwnerID != nil {
			if _, ok := d.users[*p.OwnerID]; !ok {
				return clinic.ErrUserNotFound
			}
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		now := r.now()
		p.CreatedAt = now
		p.UpdatedAt = now
		d.pets[p.ID] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ClinicRepo) GetPetByID(_ context.Context, id uuid.UUID) (*clinic.Pet, error) {
	return r.getPet(id)
}

// Batch runs fn in one transaction.
func (r *ClinicRepo) Batch(ctx context.Context, fn func(tx seed.Sink) error) error {
	return r.nested(ctx, func(v view) error {
		return fn(&ClinicRepo{v})
	})
}
