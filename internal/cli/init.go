// Package cli holds the start-up steps shared by cmd/expenses,
// cmd/expenses-worker and cmd/expensectl.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"expenses/internal/config"
	applog "expenses/internal/log"
)

// DefaultShutdownTimeout bounds graceful shutdown of servers and workers.
const DefaultShutdownTimeout = 30 * time.Second

// LoadEnvFile loads .env files for local development. A missing file is not
// an error; variables already set in the environment win.
func LoadEnvFile(files ...string) {
	_ = godotenv.Load(files...)
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Component = component
	if out != nil {
		lc.Output = out
	}
	if cfg != nil {
		lc.Level = applog.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig reads the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. The stop
// function restores default signal handling.
func GracefulShutdown(parent context.Context, logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			logger.Info("Shutdown signal received")
		}
	}()
	return ctx, stop
}

// ShutdownContext is a fresh context bounded by timeout, for cleanup after
// the main context is already cancelled.
func ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}
