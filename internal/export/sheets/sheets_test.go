package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expenses/internal/core"
	"expenses/internal/i18n"
)

func sample() []core.Expense {
	return []core.Expense{
		{ID: 2, Description: "Taxi", Amount: core.Money{Cents: 3000}, Date: core.NewDate(2024, 2, 10),
			Category: &core.Category{ID: 1, Name: "Transport"}},
		{ID: 1, Description: "Lunch", Amount: core.Money{Cents: 1250}, Date: core.NewDate(2024, 1, 5)},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sample(), i18n.For(i18n.English))
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"id", "description", "amount", "category", "date"}, rows[0])
	assert.Equal(t, []any{int64(2), "Taxi", 30.0, "Transport", "2024-02-10"}, rows[1])
	assert.Equal(t, []any{int64(1), "Lunch", 12.5, "uncategorized", "2024-01-05"}, rows[2])
}

func TestRowsLocalized(t *testing.T) {
	rows := Rows(sample()[1:], i18n.For(i18n.Arabic))
	assert.Equal(t, "المعرف", rows[0][0])
	assert.Equal(t, "غير مصنف", rows[1][3])
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	require.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestExportClearsThenWrites(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
		body  gsheet.ValueRange
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
			calls = append(calls, "clear")
		case r.Method == http.MethodPut:
			calls = append(calls, "update "+r.URL.Query().Get("valueInputOption"))
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &body)
		default:
			calls = append(calls, r.Method+" "+r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	svc, err := gsheet.NewService(ctx,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	x := NewWithService(svc, Config{SpreadsheetID: "abc"}, nil)
	require.NoError(t, x.Export(ctx, sample()))

	assert.Equal(t, []string{"clear", "update RAW"}, calls)
	require.Len(t, body.Values, 3)
	assert.Equal(t, "Taxi", body.Values[1][1])
}

func TestExportWithoutService(t *testing.T) {
	x := NewWithService(nil, Config{SpreadsheetID: "abc"}, nil)
	assert.Error(t, x.Export(context.Background(), nil))
}
