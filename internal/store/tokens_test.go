package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Surfinbird-star/aas2/internal/db"
)

func TestRevokeAndCheckToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, database, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, RevokeToken(ctx, database, "jti-1", time.Now().Add(time.Hour)))
	// Revoking twice is harmless.
	require.NoError(t, RevokeToken(ctx, database, "jti-1", time.Now().Add(time.Hour)))

	revoked, err = IsTokenRevoked(ctx, database, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = IsTokenRevoked(ctx, database, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestPurgeExpiredTokens(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, RevokeToken(ctx, database, "short", now.Add(time.Hour)))
	require.NoError(t, RevokeToken(ctx, database, "long", now.Add(48*time.Hour)))

	n, err := PurgeExpiredTokens(ctx, database, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	revoked, err := IsTokenRevoked(ctx, database, "short")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = IsTokenRevoked(ctx, database, "long")
	require.NoError(t, err)
	assert.True(t, revoked)
}
