package auth

import (
	"context"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petssecrets/veterinaria-core/internal/clinic"
)

func TestIssueVerify(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	actor := Actor{UserID: uuid.New(), Role: clinic.RoleAdmin}

	raw, err := tokens.Issue(actor)
	require.NoError(t, err)

	got, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
	assert.True(t, got.IsAdmin())
}

func TestVerifyRejectsExpired(t *testing.T) {
	tokens := NewTokens("test-secret", time.Minute)
	issuedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issuedAt }

	raw, err := tokens.Issue(Actor{UserID: uuid.New(), Role: clinic.RoleUser})
	require.NoError(t, err)

	tokens.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = tokens.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	raw, err := NewTokens("one", time.Hour).Issue(Actor{UserID: uuid.New(), Role: clinic.RoleUser})
	require.NoError(t, err)

	_, err = NewTokens("two", time.Hour).Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	claims := Claims{
		Role: "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = tokens.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestActorContext(t *testing.T) {
	_, ok := ActorFrom(context.Background())
	assert.False(t, ok)

	owner := uuid.New()
	ctx := WithActor(context.Background(), Actor{UserID: owner, Role: clinic.RoleUser})
	a, ok := ActorFrom(ctx)
	require.True(t, ok)
	assert.True(t, a.CanManage(owner))
	assert.False(t, a.CanManage(uuid.New()))
}
