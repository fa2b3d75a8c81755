// internal/app/wire.go
package app

import (
	"context"

	"rental-agents-service/internal/config"
	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/events"
	adminHandler "rental-agents-service/internal/handlers/admin"
	agentHandler "rental-agents-service/internal/handlers/agents"
	propertyHandler "rental-agents-service/internal/handlers/properties"
	referralHandler "rental-agents-service/internal/handlers/referral"
	subscriptionHandler "rental-agents-service/internal/handlers/subscription"
	verificationHandler "rental-agents-service/internal/handlers/verification"
	wsHandler "rental-agents-service/internal/handlers/websocket"
	"rental-agents-service/internal/middleware"
	"rental-agents-service/internal/pkg/clock"
	"rental-agents-service/internal/pkg/metrics"
	agentUsecase "rental-agents-service/internal/service/agent"
	referralUsecase "rental-agents-service/internal/service/referral"
	subscriptionUsecase "rental-agents-service/internal/service/subscription"
	verificationUsecase "rental-agents-service/internal/service/verification"
	"rental-agents-service/internal/websocket"
	wsHandlers "rental-agents-service/internal/websocket/handler"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// TokenVerifier satisfies both the HTTP auth middleware and the websocket hub.
type TokenVerifier interface {
	middleware.TokenVerifier
	websocket.TokenVerifier
}

// RevocationStore blacklists access tokens and answers the auth middleware.
type RevocationStore interface {
	middleware.RevocationChecker
	adminHandler.TokenRevoker
}

// Components are the infrastructure pieces chosen by the server or a test.
// Publisher receives every domain event alongside the websocket hub.
// Revocations and HealthChecks are optional.
type Components struct {
	Store        agent.Store
	Tokens       TokenVerifier
	Limiter      middleware.Limiter
	Identity     verificationUsecase.IdentityVerifier
	Revocations  RevocationStore
	Publisher    events.Publisher
	Registry     *prometheus.Registry
	Clock        clock.Clock
	HealthChecks map[string]func(ctx context.Context) error
}

// Services exposes the use cases for the CLI and tests.
type Services struct {
	Agents        *agentUsecase.AgentService
	Referrals     *referralUsecase.ReferralService
	Subscriptions *subscriptionUsecase.SubscriptionService
	Verification  *verificationUsecase.VerificationService
}

// NewServices builds the use cases over store. identity may be nil for
// callers that never submit documents.
func NewServices(
	cfg config.AppConfig,
	store agent.Store,
	identity verificationUsecase.IdentityVerifier,
	publisher events.Publisher,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Services {
	referrals := referralUsecase.NewReferralService(store, publisher, clk, m, referralUsecase.Config{
		FrontendURL:  cfg.FrontendURL,
		CodeAttempts: cfg.ReferralCodeAttempts,
	}, logger)

	return &Services{
		Agents:        agentUsecase.NewAgentService(store, referrals, clk, m, cfg.ReferralCodeAttempts, logger),
		Referrals:     referrals,
		Subscriptions: subscriptionUsecase.NewSubscriptionService(store, publisher, clk, m, logger),
		Verification:  verificationUsecase.NewVerificationService(store, identity, publisher, clk, cfg.TrialDuration, m, logger),
	}
}

// Wire assembles the hub, services and handlers. The caller runs the hub.
func Wire(cfg config.AppConfig, c Components, logger *zap.Logger) (*Handlers, *websocket.Hub, *Services, error) {
	if c.Clock == nil {
		c.Clock = clock.System{}
	}

	var (
		m           *metrics.Metrics
		httpMetrics *middleware.HTTPMetrics
		gatherer    prometheus.Gatherer
	)
	if c.Registry != nil {
		var err error
		if m, err = metrics.New(c.Registry); err != nil {
			return nil, nil, nil, err
		}
		if httpMetrics, err = middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: c.Registry}); err != nil {
			return nil, nil, nil, err
		}
		gatherer = c.Registry
	}

	hub := websocket.NewHub(c.Tokens, logger)
	publisher := events.Multi{hub, c.Publisher}

	svc := NewServices(cfg, c.Store, c.Identity, publisher, c.Clock, m, logger)

	hub.RegisterHandler(wsHandlers.NewEligibilityHandler(svc.Agents))

	auth := middleware.NewAuthMiddleware(c.Tokens)
	sockets := wsHandler.NewWebSocketHandler(hub, cfg.CORSOrigins, logger)
	var tokenAdmin *adminHandler.TokenAdminHandler
	if c.Revocations != nil {
		auth.WithRevocations(c.Revocations)
		sockets.WithRevocations(c.Revocations)
		tokenAdmin = adminHandler.NewTokenAdminHandler(c.Revocations)
	}

	h := &Handlers{
		AgentHandler:        agentHandler.NewAgentHandler(svc.Agents),
		ReferralHandler:     referralHandler.NewReferralHandler(svc.Referrals),
		SubscriptionHandler: subscriptionHandler.NewSubscriptionHandler(svc.Subscriptions),
		VerificationHandler: verificationHandler.NewVerificationHandler(svc.Verification, logger),
		PropertyHandler:     propertyHandler.NewPropertyHandler(logger),
		AdminHandler:        adminHandler.NewAgentAdminHandler(svc.Agents, svc.Verification),
		TokenAdminHandler:   tokenAdmin,
		WSHandler:           sockets,

		AuthMiddleware: auth,
		Eligibility:    svc.Agents,
		Limiter:        c.Limiter,
		ValidateRule:   cfg.ValidateRateLimit,
		WebhookSecret:  cfg.KYCWebhookSecret,
		CORSOrigins:    cfg.CORSOrigins,
		HTTPMetrics:    httpMetrics,
		Gatherer:       gatherer,
		HealthChecks:   c.HealthChecks,
	}
	return h, hub, svc, nil
}
