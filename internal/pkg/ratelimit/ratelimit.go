// internal/pkg/ratelimit/ratelimit.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is a fixed window: at most Max hits per Window.
type Rule struct {
	Max    int64
	Window time.Duration
}

type RateLimiter struct {
	client redis.UniversalClient
}

func NewRateLimiter(client redis.UniversalClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one hit for subject under scope and reports whether it is
// within the rule, plus the hits left in the current window.
func (r *RateLimiter) Allow(ctx context.Context, scope, subject string, rule Rule) (bool, int64, error) {
	key := r.key(scope, subject)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment %s rate limit: %w", scope, err)
	}

	// Set expiration on first hit
	if count == 1 {
		if err := r.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("failed to set %s rate limit window: %w", scope, err)
		}
	}

	remaining := rule.Max - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= rule.Max, remaining, nil
}

// RetryAfter is how long until the subject's window resets.
func (r *RateLimiter) RetryAfter(ctx context.Context, scope, subject string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, r.key(scope, subject)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s rate limit ttl: %w", scope, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (r *RateLimiter) Reset(ctx context.Context, scope, subject string) error {
	return r.client.Del(ctx, r.key(scope, subject)).Err()
}

func (r *RateLimiter) key(scope, subject string) string {
	return fmt.Sprintf("ratelimit:%s:%s", scope, subject)
}
