// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"rental-agents-service/internal/pkg/jwt"
	"rental-agents-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// TokenVerifier validates access tokens issued by the identity service.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

// RevocationChecker reports blacklisted token ids.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuthMiddleware struct {
	verifier    TokenVerifier
	revocations RevocationChecker
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// WithRevocations makes Auth reject revoked tokens. A failing checker lets
// the token through.
func (m *AuthMiddleware) WithRevocations(r RevocationChecker) *AuthMiddleware {
	m.revocations = r
	return m
}

// Auth validates the bearer token and puts the caller into the context
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.verifier.VerifyAccessToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		if m.revocations != nil {
			if revoked, err := m.revocations.IsRevoked(c.Request.Context(), claims.ID); err == nil && revoked {
				response.Error(c, http.StatusUnauthorized, "token has been revoked", nil)
				return
			}
		}

		c.Set(ctxIdentityID, claims.IdentityID)
		c.Set(ctxJTI, claims.ID)
		c.Set(ctxRoles, claims.Roles)

		c.Next()
	}
}

// RequireRole requires at least one of roles. MUST be used after Auth().
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRoles := GetRoles(c)
		for _, role := range roles {
			if slices.Contains(userRoles, role) {
				c.Next()
				return
			}
		}

		response.Error(c, http.StatusForbidden, "insufficient permissions",
			errors.New("user does not have required role"),
			map[string]interface{}{"required_roles": roles},
		)
	}
}

// AdminOnly returns middlewares for admin-only routes (Auth + RequireRole)
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(jwt.RoleAdmin, jwt.RoleSuperAdmin),
	}
}

// extractToken reads the Bearer header, falling back to the token query
// parameter for websocket upgrades.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	return c.Query("token")
}
