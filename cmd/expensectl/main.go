package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"expenses/internal/backend"
	"expenses/internal/cli"
	"expenses/internal/export/sheets"
	"expenses/internal/i18n"
	applog "expenses/internal/log"
	"expenses/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// Keep stdout for command output.
	logger := cli.SetupLogger(cfg, applog.ComponentCLI, os.Stderr)

	ctx, stop := cli.GracefulShutdown(context.Background(), logger)
	res, err := backend.NewFactory(logger).Build(ctx, cfg)
	if err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	locale := i18n.ParseLocale(cfg.Locale)
	a := &app{
		gateway:  res.Gateway,
		msgs:     i18n.For(locale),
		currency: cfg.Currency,
		logger:   logger,
		exporter: func(ctx context.Context) (worker.Exporter, error) {
			if err := cfg.ValidateSheets(); err != nil {
				return nil, err
			}
			return sheets.New(ctx, sheets.Config{
				SpreadsheetID:   cfg.GoogleSpreadsheetID,
				SheetName:       cfg.GoogleSheetName,
				CredentialsJSON: cfg.GoogleServiceAccountJSON,
				CredentialsFile: cfg.GoogleServiceAccountFile,
				Locale:          locale,
			}, logger.Base())
		},
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	err = a.run(ctx, os.Args[1:])
	if cerr := res.Cleanup(); cerr != nil {
		logger.Warn("Backend cleanup failed", applog.FieldError, cerr)
	}
	stop()

	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
		return
	case errors.Is(err, errUsage):
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
