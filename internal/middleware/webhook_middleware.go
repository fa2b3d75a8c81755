// internal/middleware/webhook_middleware.go
package middleware

import (
	"crypto/subtle"

	"rental-agents-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const WebhookSecretHeader = "X-KYC-Secret"

// WebhookSecret authenticates provider callbacks by shared secret. An empty
// secret rejects everything.
func WebhookSecret(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(WebhookSecretHeader))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			response.Unauthorized(c, "invalid webhook secret")
			return
		}
		c.Next()
	}
}
