package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
	"expenses/internal/i18n"
	applog "expenses/internal/log"
	"expenses/internal/store/memory"
	"expenses/internal/worker"
)

type harness struct {
	store  *memory.Store
	app    *app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T, stdin string) *harness {
	t.Helper()
	s := memory.New([]string{"Food", "Transport"})
	food := int64(1)
	for _, d := range []core.Draft{
		{Description: "Lunch", Amount: core.Money{Cents: 1250}, Date: core.NewDate(2024, 1, 5), CategoryID: &food},
		{Description: "Snacks", Amount: core.Money{Cents: 500}, Date: core.NewDate(2024, 2, 20)},
	} {
		_, err := s.CreateExpense(context.Background(), d)
		require.NoError(t, err)
	}
	h := &harness{store: s, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.app = &app{
		gateway:  s,
		msgs:     i18n.For(i18n.English),
		currency: "SAR",
		logger:   applog.Discard(),
		stdin:    strings.NewReader(stdin),
		stdout:   h.stdout,
		stderr:   h.stderr,
	}
	return h
}

func (h *harness) run(args ...string) error {
	return h.app.run(context.Background(), args)
}

func TestUsage(t *testing.T) {
	h := newHarness(t, "")
	assert.ErrorIs(t, h.run(), errUsage)
	assert.Contains(t, h.stderr.String(), "sheets-export")

	assert.ErrorIs(t, h.run("frobnicate"), errUsage)
	assert.Contains(t, h.stderr.String(), `unknown command "frobnicate"`)

	assert.NoError(t, h.run("help"))
}

func TestList(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.run("list"))
	out := h.stdout.String()
	assert.Less(t, strings.Index(out, "Snacks"), strings.Index(out, "Lunch"), "newest first")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "17.50 SAR")

	h.stdout.Reset()
	require.NoError(t, h.run("list", "-from", "2024-02-01"))
	assert.NotContains(t, h.stdout.String(), "Lunch")
	assert.Contains(t, h.stdout.String(), "5.00 SAR")

	h.stdout.Reset()
	require.NoError(t, h.run("list", "-from", "2030-01-01"))
	assert.Contains(t, h.stdout.String(), "No expenses recorded yet.")

	assert.ErrorContains(t, h.run("list", "-to", "2024-13-01"), "The filter dates are not valid.")
}

func TestSummaryAndCategories(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.run("summary"))
	out := h.stdout.String()
	assert.Contains(t, out, "Food")
	assert.Contains(t, out, "uncategorized")
	assert.Contains(t, out, "17.50 SAR")

	h.stdout.Reset()
	require.NoError(t, h.run("categories"))
	assert.Contains(t, h.stdout.String(), "1  Food")
	assert.Contains(t, h.stdout.String(), "2  Transport")
}

func TestAdd(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.run("add", "-description", "Taxi", "-amount", "30", "-date", "2024-02-10", "-category", "transport"))
	assert.Contains(t, h.stdout.String(), "Taxi\t30.00 SAR")

	all, err := h.store.ListExpenses(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	var taxi core.Expense
	for _, e := range all {
		if e.Description == "Taxi" {
			taxi = e
		}
	}
	assert.Equal(t, "Transport", taxi.CategoryName())
	assert.Equal(t, core.NewDate(2024, 2, 10), taxi.Date)
}

func TestAddDefaultsToFirstCategory(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.run("add", "-d", "Bread", "-a", "4", "-date", "2024-03-01"))
	all, err := h.store.ListExpenses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bread", all[0].Description)
	assert.Equal(t, "Food", all[0].CategoryName())
}

func TestAddValidation(t *testing.T) {
	h := newHarness(t, "")
	err := h.run("add", "-amount", "0", "-date", "2024-03-01")
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, h.stderr.String(), "amount: Amount must be a number greater than zero.")
	assert.Contains(t, h.stderr.String(), "description: Description is required.")

	assert.ErrorContains(t, h.run("add", "-description", "x", "-amount", "1", "-category", "Rent"), `unknown category "Rent"`)
}

func TestEdit(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.run("edit", "-id", "1", "-amount", "14", "-category", "none"))

	all, err := h.store.ListExpenses(context.Background())
	require.NoError(t, err)
	lunch := all[1]
	assert.Equal(t, "Lunch", lunch.Description)
	assert.Equal(t, int64(1400), lunch.Amount.Cents)
	assert.Nil(t, lunch.Category)

	assert.ErrorIs(t, h.run("edit", "-id", "99", "-amount", "1"), core.ErrNotFound)
	assert.ErrorIs(t, h.run("edit"), errUsage)
}

func TestDelete(t *testing.T) {
	h := newHarness(t, "n\n")
	require.NoError(t, h.run("delete", "-id", "1"))
	assert.Contains(t, h.stdout.String(), "Are you sure you want to delete this expense? (Lunch)")
	assert.Contains(t, h.stdout.String(), "cancelled")

	h = newHarness(t, "y\n")
	require.NoError(t, h.run("delete", "-id", "1"))
	all, err := h.store.ListExpenses(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	h = newHarness(t, "")
	require.NoError(t, h.run("delete", "-id", "2", "-y"))
	assert.NotContains(t, h.stdout.String(), "[y/N]")
}

func TestDeleteWithoutTerminalDeclines(t *testing.T) {
	h := newHarness(t, "")
	// A regular file is not a terminal, so the "y" in it is never read.
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte("y\n"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	h.app.stdin = f

	require.NoError(t, h.run("delete", "-id", "1"))
	assert.Contains(t, h.stdout.String(), "cancelled")
	all, err := h.store.ListExpenses(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestExport(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.run("export", "-to", "2024-01-31"))
	assert.Equal(t, "\uFEFFid,description,amount,category,date\n1,\"Lunch\",12.50,\"Food\",2024-01-05\n", h.stdout.String())

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, h.run("export", "-o", path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Snacks",5.00,"uncategorized"`)

	h.stdout.Reset()
	require.NoError(t, h.run("export", "-from", "2030-01-01"))
	assert.Empty(t, h.stdout.String())
	assert.Contains(t, h.stderr.String(), "There are no expenses to export.")
}

type recordingExporter struct{ got []core.Expense }

func (r *recordingExporter) Export(_ context.Context, expenses []core.Expense) error {
	r.got = expenses
	return nil
}

func TestSheetsExport(t *testing.T) {
	h := newHarness(t, "")
	assert.ErrorContains(t, h.run("sheets-export"), "not configured")

	rec := &recordingExporter{}
	h.app.exporter = func(context.Context) (worker.Exporter, error) { return rec, nil }
	require.NoError(t, h.run("sheets-export"))
	assert.Len(t, rec.got, 2)
	assert.Contains(t, h.stdout.String(), "exported 2 expenses")

	require.NoError(t, h.run("sheets-export", "-from", "2024-02-01"))
	require.Len(t, rec.got, 1)
	assert.Equal(t, "Snacks", rec.got[0].Description)
}
