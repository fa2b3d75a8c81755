// internal/handlers/websocket/websocket.go
package websocket

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"rental-agents-service/internal/pkg/response"
	ws "rental-agents-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RevocationChecker reports blacklisted token ids.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type WebSocketHandler struct {
	hub         *ws.Hub
	upgrader    websocket.Upgrader
	revocations RevocationChecker
	logger      *zap.Logger
}

// NewWebSocketHandler accepts upgrades from allowedOrigins. An empty list or
// "*" accepts any origin.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	h := &WebSocketHandler{hub: hub, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// WithRevocations refuses upgrades for revoked tokens. Lookup failures let
// the connection through, as the HTTP auth middleware does.
func (h *WebSocketHandler) WithRevocations(r RevocationChecker) *WebSocketHandler {
	h.revocations = r
	return h
}

// originChecker compares scheme and host only. Requests without an Origin
// header come from non-browser clients and are allowed.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && slices.Contains(allowed, u.Scheme+"://"+u.Host)
	}
}

// HandleConnection handles GET /ws. The token travels in ?token= because
// browsers cannot set headers on an upgrade; a bearer header also works.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearer(c.GetHeader("Authorization"))
	}
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "missing authentication token", nil)
		return
	}

	auth, err := h.hub.AuthenticateClient(token)
	if err != nil {
		h.logger.Warn("websocket authentication failed",
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		response.Error(c, http.StatusUnauthorized, "authentication failed", err)
		return
	}
	if h.revoked(c.Request.Context(), auth.SessionID) {
		response.Error(c, http.StatusUnauthorized, "token has been revoked", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		h.logger.Warn("websocket upgrade failed",
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		return
	}

	client := ws.NewClient(h.hub, conn, auth)
	h.hub.Register <- client
	go client.WritePump()
	go client.ReadPump()
}

func (h *WebSocketHandler) revoked(ctx context.Context, jti string) bool {
	if h.revocations == nil {
		return false
	}
	revoked, err := h.revocations.IsRevoked(ctx, jti)
	if err != nil {
		h.logger.Warn("revocation lookup failed", zap.Error(err))
		return false
	}
	return revoked
}

// Stats handles GET /api/v1/admin/ws/stats.
func (h *WebSocketHandler) Stats(c *gin.Context) {
	response.Success(c, http.StatusOK, "websocket stats", gin.H{
		"total_connections": h.hub.TotalClients(),
		"timestamp":         time.Now().UTC(),
	})
}

func bearer(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
