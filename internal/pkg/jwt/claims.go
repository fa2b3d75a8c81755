// internal/pkg/jwt/claims.go
package jwt

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAgent      = "agent"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"

	PurposeAccess = "access"
)

// Claims mirrors the access tokens minted by the identity service.
type Claims struct {
	IdentityID     int64    `json:"identity_id"`
	Roles          []string `json:"roles,omitempty"`
	Permissions    []string `json:"permissions,omitempty"`
	Device         string   `json:"device,omitempty"`
	IsTemp         bool     `json:"is_temp"`
	SessionPurpose string   `json:"session_purpose"`
	jwt.RegisteredClaims
}

func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// IsAdmin is true for admins and super admins.
func (c *Claims) IsAdmin() bool {
	return c.HasRole(RoleAdmin) || c.HasRole(RoleSuperAdmin)
}
