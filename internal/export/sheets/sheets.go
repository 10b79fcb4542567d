// Package sheets mirrors the expense list into a Google Sheets tab.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenses/internal/core"
	"expenses/internal/i18n"
)

const defaultSheetName = "Expenses"

type Config struct {
	SpreadsheetID string
	// SheetName is the tab that is overwritten on every export.
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	Locale          i18n.Locale
}

// Exporter replaces the contents of a sheet with the current expense list.
type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	msgs          *i18n.Messages
	logger        *slog.Logger
}

// New creates an exporter authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = defaultSheetName
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheet:         sheet,
		msgs:          i18n.For(cfg.Locale),
		logger:        logger.With("component", "sheets"),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over a file; GOOGLE_APPLICATION_CREDENTIALS is the last resort.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsJSON := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	file := strings.TrimSpace(cfg.CredentialsFile)
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case len(credentialsJSON) > 0:
		slog.DebugContext(ctx, "Using inline JSON credentials")
	case file != "":
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read credentials file", "path", file, "size", len(credentialsJSON))
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Export clears the sheet and writes a header row followed by one row per
// expense, in the given order.
func (x *Exporter) Export(ctx context.Context, expenses []core.Expense) error {
	if x.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:E", x.sheet)
	_, err := x.svc.Spreadsheets.Values.Clear(x.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", clearRange, err)
	}

	rows := Rows(expenses, x.msgs)
	dataRange := fmt.Sprintf("%s!A1:E%d", x.sheet, len(rows))
	vr := &gsheet.ValueRange{Values: rows}
	_, err = x.svc.Spreadsheets.Values.Update(x.spreadsheetID, dataRange, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", dataRange, err)
	}

	x.logger.InfoContext(ctx, "Exported expenses to Google Sheets",
		"sheet", x.sheet,
		"rows", len(expenses),
		"total_cents", core.Sum(expenses).Cents)
	return nil
}

// Rows renders the header and the expense rows. Amounts are numbers so the
// sheet can total them.
func Rows(expenses []core.Expense, msgs *i18n.Messages) [][]any {
	h := msgs.CSVHeader
	out := make([][]any, 0, len(expenses)+1)
	out = append(out, []any{h[0], h[1], h[2], h[3], h[4]})
	for _, e := range expenses {
		out = append(out, []any{
			e.ID,
			e.Description,
			e.Amount.Decimal().InexactFloat64(),
			msgs.CategoryLabel(e.Category),
			e.Date.String(),
		})
	}
	return out
}
