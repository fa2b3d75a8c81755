// internal/middleware/rate_limit_middleware.go
package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"rental-agents-service/internal/pkg/ratelimit"
	"rental-agents-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Limiter interface {
	Allow(ctx context.Context, scope, subject string, rule ratelimit.Rule) (bool, int64, error)
	RetryAfter(ctx context.Context, scope, subject string) (time.Duration, error)
}

// RateLimitByIP applies rule per client IP. Limiter failures let the
// request through.
func RateLimitByIP(limiter Limiter, scope string, rule ratelimit.Rule, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || rule.Max <= 0 {
			c.Next()
			return
		}

		ip := c.ClientIP()
		ctx := c.Request.Context()

		allowed, remaining, err := limiter.Allow(ctx, scope, ip, rule)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(rule.Max, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			if retry, err := limiter.RetryAfter(ctx, scope, ip); err == nil && retry > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			}
			response.Error(c, http.StatusTooManyRequests, "too many requests, please try again later", nil)
			return
		}

		c.Next()
	}
}
