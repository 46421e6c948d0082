package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/auth-service/pkg/database"
)

const keyPrefix = "auth:revoked:"

// RevocationStore keeps revoked token ids until the token would have expired.
type RevocationStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRevocationStore creates a Redis-backed revocation set.
func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client, now: time.Now}
}

// Revoke marks the token id as revoked until expiresAt. Already expired
// tokens are ignored.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (err error) {
	if tokenID == "" {
		return errors.New("revoke: empty token id")
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "revocation.set", "SET")
	defer func() { end(err) }()

	if err = s.client.Set(ctx, keyPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id is in the revocation set.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (_ bool, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemRedis, "revocation.exists", "EXISTS")
	defer func() { end(err) }()

	n, err := s.client.Exists(ctx, keyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redis check revocation: %w", err)
	}
	return n > 0, nil
}

// Ping checks the Redis connection.
func (s *RevocationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
