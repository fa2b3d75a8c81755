package main

import (
	"context"
	"fmt"

	"rental-agents-service/internal/app"
	"rental-agents-service/internal/config"
	"rental-agents-service/internal/db"
	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/events"
	"rental-agents-service/internal/pkg/clock"
	"rental-agents-service/internal/pkg/logger"
	"rental-agents-service/internal/repository/memory"
	"rental-agents-service/internal/repository/postgres"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// runtime is what every subcommand works against.
type runtime struct {
	cfg      config.AppConfig
	services *app.Services
	logger   *zap.Logger
	close    func()
}

type opener func(ctx context.Context) (*runtime, error)

func openRuntime(ctx context.Context) (*runtime, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	var (
		store   agent.Store
		closeFn = func() { _ = log.Sync() }
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		store = memory.NewStore(nil)
	default:
		pool, err := db.ConnectDB(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		store = postgres.NewAgentStore(pool)
		closeFn = func() {
			pool.Close()
			_ = log.Sync()
		}
	}

	return &runtime{
		cfg:      cfg,
		services: app.NewServices(cfg, store, nil, events.Nop{}, clock.System{}, nil, log),
		logger:   log,
		close:    closeFn,
	}, nil
}
