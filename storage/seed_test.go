package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed(t *testing.T) {
	database, queries, cleanup, err := NewTestDB()
	require.NoError(t, err)
	defer cleanup()

	ctx := context.Background()
	res, err := Seed(ctx, database, 5, 42)
	require.NoError(t, err)
	require.Len(t, res.PrincipalIDs, 5)

	for _, principal := range res.PrincipalIDs {
		profile, err := queries.GetProfile(ctx, principal)
		require.NoError(t, err)
		user, err := queries.GetUserByPrincipalID(ctx, principal)
		require.NoError(t, err)

		assert.Equal(t, profile.Email, user.Email.String)
		assert.Len(t, user.ID, 26)
		assert.False(t, user.LastSeenAt.Before(user.CreatedAt))
	}
}

func TestSeed_Deterministic(t *testing.T) {
	a, _, cleanupA, err := NewTestDB()
	require.NoError(t, err)
	defer cleanupA()
	b, _, cleanupB, err := NewTestDB()
	require.NoError(t, err)
	defer cleanupB()

	first, err := Seed(context.Background(), a, 3, 7)
	require.NoError(t, err)
	second, err := Seed(context.Background(), b, 3, 7)
	require.NoError(t, err)

	assert.Equal(t, first.PrincipalIDs, second.PrincipalIDs)
}
