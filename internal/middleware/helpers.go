// internal/middleware/helpers.go
package middleware

import (
	"rental-agents-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Request-scoped keys set by the middleware in this package.
const (
	ctxIdentityID  = "identity_id"
	ctxJTI         = "jti"
	ctxRoles       = "roles"
	ctxRequestID   = response.RequestIDKey
	ctxEligibility = "listing_eligibility"
)

func value[T any](c *gin.Context, key string) (T, bool) {
	v, ok := c.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func GetIdentityID(c *gin.Context) (int64, bool) {
	return value[int64](c, ctxIdentityID)
}

// MustGetIdentityID is for handlers mounted behind Auth. It panics otherwise.
func MustGetIdentityID(c *gin.Context) int64 {
	id, ok := GetIdentityID(c)
	if !ok {
		panic("identity_id not found in context")
	}
	return id
}

// GetJTI returns the token ID of the authenticated request, or "".
func GetJTI(c *gin.Context) string {
	return c.GetString(ctxJTI)
}

func GetRoles(c *gin.Context) []string {
	roles, _ := value[[]string](c, ctxRoles)
	return roles
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}
