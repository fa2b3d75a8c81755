// internal/handlers/admin/token_admin_handler.go
package admin

import (
	"context"
	"net/http"
	"time"

	"rental-agents-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	Restore(ctx context.Context, jti string) error
}

type RevokeTokenRequest struct {
	JTI        string `json:"jti" binding:"required,max=64"`
	TTLSeconds int64  `json:"ttl_seconds" binding:"omitempty,min=1"`
}

type TokenAdminHandler struct {
	revoker TokenRevoker
}

func NewTokenAdminHandler(revoker TokenRevoker) *TokenAdminHandler {
	return &TokenAdminHandler{revoker: revoker}
}

// Revoke blacklists an access token by its jti
func (h *TokenAdminHandler) Revoke(c *gin.Context) {
	var req RevokeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := h.revoker.Revoke(c.Request.Context(), req.JTI, ttl); err != nil {
		response.FromError(c, "failed to revoke token", err)
		return
	}

	response.Success(c, http.StatusOK, "token revoked", gin.H{"jti": req.JTI})
}

func (h *TokenAdminHandler) Restore(c *gin.Context) {
	jti := c.Param("jti")
	if err := h.revoker.Restore(c.Request.Context(), jti); err != nil {
		response.FromError(c, "failed to restore token", err)
		return
	}

	response.Success(c, http.StatusOK, "token restored", gin.H{"jti": jti})
}
