// Package memory is an in-process implementation of the scheduling and
// adoption repositories, used in dev mode and in tests.
//
// Writers and transactions are serialized by one mutex. A transaction works
// on a copy of the data that replaces the live copy on commit, so a failed
// transaction leaves nothing behind. The same uniqueness rules as the
// Postgres partial indexes are enforced on every write.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/adoption"
	"github.com/petssecrets/veterinaria-core/internal/appointment"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/events"
)

type dataset struct {
	users        map[uuid.UUID]clinic.User
	locations    map[uuid.UUID]clinic.Location
	services     map[uuid.UUID]clinic.VetService
	pets         map[uuid.UUID]clinic.Pet
	appointments map[uuid.UUID]appointment.Appointment
	requests     map[uuid.UUID]adoption.Request
	events       []events.Record
}

func newDataset() *dataset {
	return &dataset{
		users:        make(map[uuid.UUID]clinic.User),
		locations:    make(map[uuid.UUID]clinic.Location),
		services:     make(map[uuid.UUID]clinic.VetService),
		pets:         make(map[uuid.UUID]clinic.Pet),
		appointments: make(map[uuid.UUID]appointment.Appointment),
		requests:     make(map[uuid.UUID]adoption.Request),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *dataset) clone() *dataset {
	evs := make([]events.Record, len(d.events))
	copy(evs, d.events)
	return &dataset{
		users:        cloneMap(d.users),
		locations:    cloneMap(d.locations),
		services:     cloneMap(d.services),
		pets:         cloneMap(d.pets),
		appointments: cloneMap(d.appointments),
		requests:     cloneMap(d.requests),
		events:       evs,
	}
}

type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	data    *dataset
	now     func() time.Time
}

func New() *Store {
	return &Store{data: newDataset(), now: time.Now}
}

func (s *Store) Appointments() *AppointmentRepo {
	return &AppointmentRepo{view{s: s}}
}

func (s *Store) Adoptions() *AdoptionRepo {
	return &AdoptionRepo{view{s: s}}
}

func (s *Store) Clinic() *ClinicRepo {
	return &ClinicRepo{view{s: s}}
}

// Events returns a copy of the event log.
func (s *Store) Events() []events.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.Record, len(s.data.events))
	copy(out, s.data.events)
	return out
}

func (s *Store) inTx(ctx context.Context, fn func(v view) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(view{s: s, tx: work}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

// view is a handle on either the live dataset or a transaction's copy.
type view struct {
	s  *Store
	tx *dataset
}

func (v view) read(fn func(d *dataset) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return fn(v.s.data)
}

// write applies fn to the live dataset outside a transaction. fn must check
// every rule before it mutates anything.
func (v view) write(fn func(d *dataset) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.s.writeMu.Lock()
	defer v.s.writeMu.Unlock()
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return fn(v.s.data)
}

func (v view) nested(ctx context.Context, fn func(v view) error) error {
	if v.tx != nil {
		return fn(v)
	}
	return v.s.inTx(ctx, fn)
}

func (v view) now() time.Time {
	return v.s.now()
}

func (v view) getPet(id uuid.UUID) (*clinic.Pet, error) {
	var out *clinic.Pet
	err := v.read(func(d *dataset) error {
		p, ok := d.pets[id]
		if !ok {
			return clinic.ErrPetNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (v view) updatePet(p clinic.Pet) (*clinic.Pet, error) {
	err := v.write(func(d *dataset) error {
		cur, ok := d.pets[p.ID]
		if !ok {
			return clinic.ErrPetNotFound
		}
		p.CreatedAt = cur.CreatedAt
		p.UpdatedAt = v.now()
		d.pets[p.ID] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (v view) insertEvent(rec events.Record) error {
	return v.write(func(d *dataset) error {
		rec.ID = int64(len(d.events) + 1)
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = v.now()
		}
		d.events = append(d.events, rec)
		return nil
	})
}
