package auth

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/loganlanou/authgate/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	_, queries, cleanup, err := storage.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(cleanup)

	return NewService(queries)
}

func TestService_GetOrCreateUser_CreatesOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	claims := &Claims{Subject: gofakeit.UUID(), Email: gofakeit.Email()}

	first, err := svc.GetOrCreateUser(ctx, claims)
	require.NoError(t, err)
	assert.Len(t, first.ID, 26, "ULID")
	assert.Equal(t, claims.Subject, first.PrincipalID)
	assert.Equal(t, claims.Email, first.Email.String)

	second, err := svc.GetOrCreateUser(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestService_GetOrCreateUser_TouchesLastSeen(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	claims := &Claims{Subject: "uid-1", Email: "ada@example.com"}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }
	_, err := svc.GetOrCreateUser(ctx, claims)
	require.NoError(t, err)

	later := start.Add(time.Hour)
	svc.now = func() time.Time { return later }
	u, err := svc.GetOrCreateUser(ctx, &Claims{Subject: "uid-1"})
	require.NoError(t, err)

	assert.True(t, u.LastSeenAt.Equal(later))
	assert.Equal(t, "ada@example.com", u.Email.String, "email kept when the token has none")

	stored, err := svc.queries.GetUserByPrincipalID(ctx, "uid-1")
	require.NoError(t, err)
	assert.True(t, stored.LastSeenAt.Equal(later))
	assert.True(t, stored.CreatedAt.Equal(start))
}

func TestService_DistinctPrincipals(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.GetOrCreateUser(ctx, &Claims{Subject: "uid-a"})
	require.NoError(t, err)
	b, err := svc.GetOrCreateUser(ctx, &Claims{Subject: "uid-b"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Email.Valid)
}
