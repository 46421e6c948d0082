package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RevocationStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRevocationStore(client), mr
}

func TestRevocationStore_RevokeAndCheck(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Now().Add(10*time.Minute)))

	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.True(t, mr.Exists(keyPrefix+"jti-1"))
	ttl := mr.TTL(keyPrefix + "jti-1")
	assert.True(t, ttl > 9*time.Minute && ttl <= 10*time.Minute, "unexpected ttl %s", ttl)
}

func TestRevocationStore_EntryExpiresWithToken(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "jti-2", time.Now().Add(time.Minute)))
	mr.FastForward(2 * time.Minute)

	revoked, err := store.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevocationStore_IgnoresExpiredTokens(t *testing.T) {
	store, mr := setupTestRedis(t)

	require.NoError(t, store.Revoke(context.Background(), "jti-3", time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists(keyPrefix+"jti-3"))
}

func TestRevocationStore_RejectsEmptyID(t *testing.T) {
	store, _ := setupTestRedis(t)
	assert.Error(t, store.Revoke(context.Background(), "", time.Now().Add(time.Minute)))
}

func TestRevocationStore_ConnectionError(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	_, err := store.IsRevoked(context.Background(), "jti-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis check revocation")
	assert.Error(t, store.Ping(context.Background()))
}
