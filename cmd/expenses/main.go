package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"expenses/internal/api"
	"expenses/internal/backend"
	"expenses/internal/cli"
	"expenses/internal/config"
	apphttp "expenses/internal/http"
	"expenses/internal/i18n"
	applog "expenses/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentApp, nil)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.GracefulShutdown(context.Background(), logger)
	defer stop()

	res, err := backend.NewFactory(logger).Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize %s backend: %w", cfg.DataBackend, err)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	locale := i18n.ParseLocale(cfg.Locale)
	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		Locale:             locale,
		Currency:           cfg.Currency,
		SessionTTL:         cfg.SessionTTL,
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, res.Gateway, logger)
	if err != nil {
		return fmt.Errorf("build HTTP server: %w", err)
	}
	if applog.ParseLevel(cfg.LogLevel) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	apiRouter := api.NewRouter(res.Gateway, api.Config{
		AllowOrigins: cfg.CORSAllowOrigins,
		Locale:       locale,
	}, logger)
	srv.Mount("/api/", applog.ComponentMiddleware(applog.ComponentAPI)(apiRouter))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expenses server",
			"port", cfg.Port,
			applog.FieldBackend, cfg.DataBackend,
			"locale", locale)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := cli.ShutdownContext(cli.DefaultShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
