// internal/app/router.go
package app

import (
	"context"
	"net/http"
	"time"

	adminHandler "rental-agents-service/internal/handlers/admin"
	agentHandler "rental-agents-service/internal/handlers/agents"
	propertyHandler "rental-agents-service/internal/handlers/properties"
	referralHandler "rental-agents-service/internal/handlers/referral"
	subscriptionHandler "rental-agents-service/internal/handlers/subscription"
	verificationHandler "rental-agents-service/internal/handlers/verification"
	wsHandler "rental-agents-service/internal/handlers/websocket"
	"rental-agents-service/internal/middleware"
	"rental-agents-service/internal/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	AgentHandler        *agentHandler.AgentHandler
	ReferralHandler     *referralHandler.ReferralHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	VerificationHandler *verificationHandler.VerificationHandler
	PropertyHandler     *propertyHandler.PropertyHandler
	AdminHandler        *adminHandler.AgentAdminHandler
	TokenAdminHandler   *adminHandler.TokenAdminHandler
	WSHandler           *wsHandler.WebSocketHandler

	AuthMiddleware *middleware.AuthMiddleware
	Eligibility    middleware.EligibilityChecker
	Limiter        middleware.Limiter
	ValidateRule   ratelimit.Rule
	WebhookSecret  string
	CORSOrigins    []string
	HTTPMetrics    *middleware.HTTPMetrics
	Gatherer       prometheus.Gatherer
	HealthChecks   map[string]func(ctx context.Context) error
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	r.Use(
		middleware.RequestID(),
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(h.CORSOrigins),
	)
	if h.HTTPMetrics != nil {
		r.Use(h.HTTPMetrics.Handler())
	}

	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", healthHandler(h.HealthChecks))

	if h.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{})))
	}

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Agents ====================
	agentsPublic := api.Group("/agents")
	{
		agentsPublic.GET("/referral/validate",
			middleware.RateLimitByIP(h.Limiter, "referral_validate", h.ValidateRule, logger),
			h.ReferralHandler.Validate,
		)
	}

	agents := api.Group("/agents")
	agents.Use(h.AuthMiddleware.Auth())
	{
		agents.POST("/apply", h.AgentHandler.Apply)
		agents.GET("/profile", h.AgentHandler.Profile)
		agents.GET("/eligibility", h.AgentHandler.Eligibility)

		agents.POST("/referral/apply", h.ReferralHandler.Apply)
		agents.GET("/referral/stats", h.ReferralHandler.Stats)

		agents.GET("/subscription/status", h.SubscriptionHandler.Status)
		agents.POST("/subscription", h.SubscriptionHandler.Activate)
		agents.POST("/subscription/renew", h.SubscriptionHandler.Renew)
		agents.POST("/subscription/cancel", h.SubscriptionHandler.Cancel)
	}

	// ==================== Verification ====================
	api.POST("/verification/webhook",
		middleware.WebhookSecret(h.WebhookSecret),
		h.VerificationHandler.Webhook,
	)

	verification := api.Group("/verification")
	verification.Use(h.AuthMiddleware.Auth())
	{
		verification.POST("/submit", h.VerificationHandler.Submit)
		verification.GET("/status", h.VerificationHandler.Status)
	}

	// ==================== Properties ====================
	properties := api.Group("/properties")
	properties.Use(h.AuthMiddleware.Auth(), middleware.ListingGate(h.Eligibility))
	{
		properties.POST("/authorize", h.PropertyHandler.Authorize)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.GET("/agents", h.AdminHandler.ListAgents)
		admin.GET("/agents/:id", h.AdminHandler.GetAgent)
		admin.PUT("/agents/:id/verify", h.AdminHandler.Verify)
		admin.PUT("/agents/:id/reject", h.AdminHandler.Reject)
		admin.GET("/ws/stats", h.WSHandler.Stats)
		if h.TokenAdminHandler != nil {
			admin.POST("/tokens/revoke", h.TokenAdminHandler.Revoke)
			admin.DELETE("/tokens/:jti", h.TokenAdminHandler.Restore)
		}
	}
}

// healthHandler answers 503 when any dependency fails its check.
func healthHandler(checks map[string]func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				deps[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
		c.JSON(code, gin.H{"status": status, "time": time.Now().UTC(), "dependencies": deps})
	}
}
