// internal/pkg/session/revocations.go
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MaxRevocationTTL bounds how long a revoked jti is remembered. Access
// tokens never live longer than this.
const MaxRevocationTTL = 24 * time.Hour

var ErrMissingJTI = errors.New("token id is required")

// Revocations is a Redis-backed blacklist of access token ids.
type Revocations struct {
	client redis.UniversalClient
}

func NewRevocations(client redis.UniversalClient) *Revocations {
	return &Revocations{client: client}
}

// Revoke blacklists jti until ttl passes. A ttl outside (0, MaxRevocationTTL]
// is clamped to MaxRevocationTTL.
func (r *Revocations) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return ErrMissingJTI
	}
	if ttl <= 0 || ttl > MaxRevocationTTL {
		ttl = MaxRevocationTTL
	}
	if err := r.client.Set(ctx, r.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti is on the blacklist. Tokens without an id
// cannot be revoked.
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := r.client.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return n > 0, nil
}

// Restore removes jti from the blacklist.
func (r *Revocations) Restore(ctx context.Context, jti string) error {
	return r.client.Del(ctx, r.key(jti)).Err()
}

func (r *Revocations) key(jti string) string {
	return fmt.Sprintf("revoked:jti:%s", jti)
}
