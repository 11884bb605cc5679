package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/apperr"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/events"
)

var (
	ErrAppointmentNotFound = apperr.New(apperr.ErrNotFound, "appointment not found")

	// ErrSlotTaken is also returned by repositories when the storage level
	// uniqueness rule on active slots rejects a write.
	ErrSlotTaken = apperr.New(apperr.ErrSlotConflict, "slot already has an active appointment")
)

// Repository contains all storage interactions needed by the service.
type Repository interface {
	GetPetByID(ctx context.Context, id uuid.UUID) (*clinic.Pet, error)
	GetServiceByID(ctx context.Context, id uuid.UUID) (*clinic.VetService, error)
	GetLocationByID(ctx context.Context, id uuid.UUID) (*clinic.Location, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// FindActiveInSlot returns an appointment holding slot, ignoring
	// excludeID, or ErrAppointmentNotFound when the slot is free.
	FindActiveInSlot(ctx context.Context, slot Slot, excludeID uuid.UUID) (*Appointment, error)

	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)

	InsertEvent(ctx context.Context, rec events.Record) error

	// InTx runs fn inside a single storage transaction. fn must only use the
	// Repository it is given.
	InTx(ctx context.Context, fn func(tx Repository) error) error
}
