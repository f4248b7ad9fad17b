package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevocationList(t *testing.T) {
	list := NewMemoryRevocationList()
	ctx := context.Background()

	revoked, err := list.IsRevoked(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "token-1", time.Hour))

	revoked, err = list.IsRevoked(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Other tokens are unaffected
	revoked, err = list.IsRevoked(ctx, "token-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRevocationListIgnoresExpiredTokens(t *testing.T) {
	list := NewMemoryRevocationList()
	ctx := context.Background()

	// Revoking a token past its natural expiry is a no-op
	require.NoError(t, list.Revoke(ctx, "token-1", 0))
	require.NoError(t, list.Revoke(ctx, "token-2", -time.Minute))

	for _, id := range []string{"token-1", "token-2"} {
		revoked, err := list.IsRevoked(ctx, id)
		require.NoError(t, err)
		assert.False(t, revoked)
	}
}

func TestMemoryRevocationListEntriesLapse(t *testing.T) {
	list := NewMemoryRevocationList()
	ctx := context.Background()

	require.NoError(t, list.Revoke(ctx, "token-1", 10*time.Millisecond))

	revoked, err := list.IsRevoked(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	time.Sleep(20 * time.Millisecond)

	revoked, err = list.IsRevoked(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}
