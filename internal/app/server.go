// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rental-agents-service/internal/config"
	"rental-agents-service/internal/db"
	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/events"
	"rental-agents-service/internal/kyc"
	"rental-agents-service/internal/pkg/jwt"
	"rental-agents-service/internal/pkg/logger"
	"rental-agents-service/internal/pkg/ratelimit"
	"rental-agents-service/internal/pkg/session"
	"rental-agents-service/internal/repository/memory"
	"rental-agents-service/internal/repository/postgres"
	"rental-agents-service/internal/service/verification"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	pool   *pgxpool.Pool
	redis  redis.UniversalClient
	http   *http.Server
	cancel context.CancelFunc
}

func NewServer(cfg config.AppConfig) (*Server, error) {
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: gin.New(), logger: log}, nil
}

func (s *Server) Logger() *zap.Logger {
	return s.logger
}

// Start connects the backing stores, wires the handlers and serves HTTP until
// Shutdown. It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// ----- Storage -----
	store, err := s.openStore(ctx)
	if err != nil {
		return err
	}

	// ----- Redis -----
	s.redis, err = db.NewRedis(ctx, s.cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	s.logger.Info("redis connected", zap.Strings("addresses", s.cfg.Redis.Addresses))

	// ----- JWT -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}

	// ----- Identity provider -----
	var identity verification.IdentityVerifier = kyc.Manual{}
	if s.cfg.KYC.BaseURL != "" {
		identity = kyc.NewHTTPVerifier(s.cfg.KYC, s.logger)
	} else {
		s.logger.Warn("KYC_BASE_URL not set, documents wait for manual review")
	}
	if s.cfg.KYCWebhookSecret == "" {
		s.logger.Warn("KYC_WEBHOOK_SECRET not set, verification webhook rejects all calls")
	}

	// ----- Metrics -----
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handlers, hub, _, err := Wire(s.cfg, Components{
		Store:        store,
		Tokens:       verifier,
		Limiter:      ratelimit.NewRateLimiter(s.redis),
		Identity:     identity,
		Revocations:  session.NewRevocations(s.redis),
		Publisher:    events.NewRedisPublisher(s.redis, s.cfg.EventsChannel),
		Registry:     registry,
		HealthChecks: s.healthChecks(),
	}, s.logger)
	if err != nil {
		return fmt.Errorf("failed to wire handlers: %w", err)
	}
	go hub.Run(ctx)

	SetupRouter(s.engine, s.logger, handlers)

	// ----- Start HTTP -----
	s.http = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server listening",
		zap.String("addr", s.cfg.HTTPAddr),
		zap.String("storage", s.cfg.StorageDriver),
	)
	return s.http.ListenAndServe()
}

func (s *Server) openStore(ctx context.Context) (agent.Store, error) {
	if s.cfg.StorageDriver == config.StorageMemory {
		s.logger.Warn("using in-memory storage, data is lost on restart")
		return memory.NewStore(nil), nil
	}

	pool, err := db.ConnectDB(ctx, s.cfg.Postgres, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool

	if err := postgres.Migrate(ctx, pool); err != nil {
		return nil, err
	}
	return postgres.NewAgentStore(pool), nil
}

func (s *Server) healthChecks() map[string]func(ctx context.Context) error {
	checks := map[string]func(ctx context.Context) error{
		"redis": func(ctx context.Context) error { return s.redis.Ping(ctx).Err() },
	}
	if s.pool != nil {
		checks["postgres"] = s.pool.Ping
	}
	return checks
}

// Shutdown drains HTTP and closes the pools.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	_ = s.logger.Sync()
	return errors.Join(errs...)
}
