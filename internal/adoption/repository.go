package adoption

import (
	"context"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/apperr"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/events"
)

var (
	ErrRequestNotFound = apperr.New(apperr.ErrNotFound, "adoption request not found")

	// ErrActiveRequestExists is returned by repositories when the storage
	// level rule of one active request per pet rejects a write.
	ErrActiveRequestExists = apperr.New(apperr.ErrDuplicateRequest, "pet already has an active adoption request")
)

type Repository interface {
	GetPetByID(ctx context.Context, id uuid.UUID) (*clinic.Pet, error)
	// GetPetForUpdate loads the pet and, inside a transaction, locks it
	// until commit.
	GetPetForUpdate(ctx context.Context, id uuid.UUID) (*clinic.Pet, error)
	UpdatePet(ctx context.Context, p clinic.Pet) (*clinic.Pet, error)

	GetRequestByID(ctx context.Context, id uuid.UUID) (*Request, error)
	GetRequestForUpdate(ctx context.Context, id uuid.UUID) (*Request, error)

	// FindPendingRequest returns the user's pending request for the pet or
	// ErrRequestNotFound.
	FindPendingRequest(ctx context.Context, userID, petID uuid.UUID) (*Request, error)
	// CountActiveRequests counts pending and approved requests for the pet,
	// ignoring excludeID.
	CountActiveRequests(ctx context.Context, petID, excludeID uuid.UUID) (int, error)

	CreateRequest(ctx context.Context, r Request) (*Request, error)
	UpdateRequest(ctx context.Context, r Request) (*Request, error)
	ListRequests(ctx context.Context, f Filter) ([]Request, error)

	InsertEvent(ctx context.Context, rec events.Record) error

	InTx(ctx context.Context, fn func(tx Repository) error) error
}
