package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/petssecrets/veterinaria-core/internal/apperr"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
)

var ErrAdminOnly = apperr.New(apperr.ErrPermission, "admin role required")

// Actor is the authenticated caller on whose behalf an operation runs.
type Actor struct {
	UserID uuid.UUID
	Role   clinic.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == clinic.RoleAdmin
}

func (a Actor) RequireAdmin() error {
	if !a.IsAdmin() {
		return ErrAdminOnly
	}
	return nil
}

// CanManage reports whether the actor owns a resource belonging to ownerID or
// is an admin.
func (a Actor) CanManage(ownerID uuid.UUID) bool {
	return a.UserID == ownerID || a.IsAdmin()
}

type contextKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}
