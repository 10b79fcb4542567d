package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"expenses/internal/amqp"
	"expenses/internal/backend"
	"expenses/internal/cli"
	"expenses/internal/config"
	"expenses/internal/export/sheets"
	"expenses/internal/i18n"
	applog "expenses/internal/log"
	"expenses/internal/services"
	"expenses/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err == nil {
		err = cfg.ValidateSheets()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker, nil)

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	ctx, stop := cli.GracefulShutdown(context.Background(), logger)
	defer stop()

	// The mirror must see every write, so it reads past any cache.
	readCfg := *cfg
	readCfg.CacheBackend = config.CacheNone
	res, err := backend.NewFactory(logger, backend.WithoutEvents()).Build(ctx, &readCfg)
	if err != nil {
		return fmt.Errorf("initialize %s backend: %w", cfg.DataBackend, err)
	}
	defer res.Cleanup()

	exporter, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		Locale:          i18n.ParseLocale(cfg.Locale),
	}, logger.Base())
	if err != nil {
		return fmt.Errorf("initialize Google Sheets exporter: %w", err)
	}
	mirror := worker.NewMirror(res.Gateway, exporter, logger.Base())

	if cfg.AMQPURL == "" {
		logger.Info("AMQP not configured, polling for changes", "interval", cfg.SyncInterval)
		syncCfg := services.DefaultSyncProcessorConfig()
		syncCfg.PollInterval = cfg.SyncInterval
		proc := services.NewSyncProcessor(mirror.Sync, syncCfg, logger.Base())
		if err := proc.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		shutdownCtx, cancel := cli.ShutdownContext(cli.DefaultShutdownTimeout)
		defer cancel()
		return proc.Stop(shutdownCtx)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Base())
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer client.Close()

	// Catch up on changes made while the worker was down.
	if err := mirror.Sync(ctx); err != nil {
		logger.Error("Startup sync failed", applog.FieldError, err)
	}

	logger.Info("Consuming expense events",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client.ConsumeWithReconnect(ctx, mirror.HandleEvent)
}
