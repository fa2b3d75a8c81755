package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRevocations(t *testing.T) (*Revocations, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRevocations(client), mr
}

func TestRevokeAndRestore(t *testing.T) {
	r, _ := newRevocations(t)
	ctx := context.Background()

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Hour))
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, r.Restore(ctx, "jti-1"))
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeExpires(t *testing.T) {
	r, mr := newRevocations(t)
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "jti-2", time.Minute))
	mr.FastForward(2 * time.Minute)

	revoked, err := r.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeClampsTTL(t *testing.T) {
	r, mr := newRevocations(t)

	require.NoError(t, r.Revoke(context.Background(), "jti-3", 0))
	assert.Equal(t, MaxRevocationTTL, mr.TTL("revoked:jti:jti-3"))
}

func TestRevokeRequiresJTI(t *testing.T) {
	r, _ := newRevocations(t)
	assert.ErrorIs(t, r.Revoke(context.Background(), "", time.Hour), ErrMissingJTI)

	revoked, err := r.IsRevoked(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestIsRevokedRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	r := NewRevocations(client)
	mr.Close()

	_, err = r.IsRevoked(context.Background(), "jti-4")
	assert.Error(t, err)
}
