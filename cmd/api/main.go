package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rental-agents-service/internal/app"
	"rental-agents-service/internal/config"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}
	if err := run(); err != nil {
		log.Printf("[MAIN] %v", err)
		os.Exit(1)
	}
}

// run serves until SIGINT/SIGTERM or a listener failure, then drains.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	srv, err := app.NewServer(cfg)
	if err != nil {
		return err
	}
	logger := srv.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- srv.Start() }()

	var serveErr error
	select {
	case err := <-served:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
			logger.Error("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down server")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return errors.Join(serveErr, err)
	}
	if serveErr == nil {
		logger.Info("server stopped gracefully")
	}
	return serveErr
}
