package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/appointment"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/events"
)

type AppointmentRepo struct {
	view
}

var _ appointment.Repository = (*AppointmentRepo)(nil)

func (r *AppointmentRepo) GetPetByID(_ context.Context, id uuid.UUID) (*clinic.Pet, error) {
	return r.getPet(id)
}

func (r *AppointmentRepo) GetServiceByID(_ context.Context, id uuid.UUID) (*clinic.VetService, error) {
	var out *clinic.VetService
	err := r.read(func(d *dataset) error {
		s, ok := d.services[id]
		if !ok {
			return clinic.ErrServiceNotFound
		}
		out = &s
		return nil
	})
	return out, err
}

func (r *AppointmentRepo) GetLocationByID(_ context.Context, id uuid.UUID) (*clinic.Location, error) {
	var out *clinic.Location
	err := r.read(func(d *dataset) error {
		l, ok := d.locations[id]
		if !ok {
			return clinic.ErrLocationNotFound
		}
		out = &l
		return nil
	})
	return out, err
}

func (r *AppointmentRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var out *appointment.Appointment
	err := r.read(func(d *dataset) error {
		a, ok := d.appointments[id]
		if !ok {
			return appointment.ErrAppointmentNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

func (r *AppointmentRepo) FindActiveInSlot(_ context.Context, slot appointment.Slot, excludeID uuid.UUID) (*appointment.Appointment, error) {
	var out *appointment.Appointment
	err := r.read(func(d *dataset) error {
		a := holderOf(d, slot, excludeID)
		if a == nil {
			return appointment.ErrAppointmentNotFound
		}
		out = a
		return nil
	})
	return out, err
}

func holderOf(d *dataset, slot appointment.Slot, excludeID uuid.UUID) *appointment.Appointment {
	for id, a := range d.appointments {
		if id == excludeID || !a.Status.Holds() {
			continue
		}
		if a.Slot().Equal(slot) {
			return &a
		}
	}
	return nil
}

func (r *AppointmentRepo) CreateAppointment(_ context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	err := r.write(func(d *dataset) error {
		if a.Status.Holds() && holderOf(d, a.Slot(), a.ID) != nil {
			return appointment.ErrSlotTaken
		}
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		now := r.now()
		a.Date = appointment.DateOf(a.Date)
		a.CreatedAt = now
		a.UpdatedAt = now
		d.appointments[a.ID] = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AppointmentRepo) UpdateAppointment(_ context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	err := r.write(func(d *dataset) error {
		cur, ok := d.appointments[a.ID]
		if !ok {
			return appointment.ErrAppointmentNotFound
		}
		if a.Status.Holds() && holderOf(d, a.Slot(), a.ID) != nil {
			return appointment.ErrSlotTaken
		}
		a.Date = appointment.DateOf(a.Date)
		a.CreatedAt = cur.CreatedAt
		a.UpdatedAt = r.now()
		d.appointments[a.ID] = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AppointmentRepo) ListAppointments(_ context.Context, f appointment.Filter) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	err := r.read(func(d *dataset) error {
		for _, a := range d.appointments {
			if f.Matches(&a) {
				out = append(out, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			if f.Order == appointment.OrderLatest {
				return a.Date.After(b.Date)
			}
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			if f.Order == appointment.OrderLatest {
				return a.Time > b.Time
			}
			return a.Time < b.Time
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (r *AppointmentRepo) InsertEvent(_ context.Context, rec events.Record) error {
	return r.insertEvent(rec)
}

func (r *AppointmentRepo) InTx(ctx context.Context, fn func(tx appointment.Repository) error) error {
	return r.nested(ctx, func(v view) error {
		return fn(&AppointmentRepo{v})
	})
}
