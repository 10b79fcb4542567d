package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/store"
)

// Exporter writes the full expense list somewhere outside the backend.
type Exporter interface {
	Export(ctx context.Context, expenses []core.Expense) error
}

// Mirror keeps an external copy of the expense list in step with the backend.
// Events only carry ids, so every sync re-reads and re-exports the whole list.
type Mirror struct {
	expenses store.ExpenseLister
	exporter Exporter
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSync time.Time
}

func NewMirror(expenses store.ExpenseLister, exporter Exporter, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		expenses: expenses,
		exporter: exporter,
		logger:   logger.With("component", "worker"),
		now:      time.Now,
	}
}

// HandleEvent processes a single change event from AMQP. Events raised before
// the last successful sync started are already reflected in the mirror and
// are acknowledged without work.
func (m *Mirror) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	m.mu.Lock()
	last := m.lastSync
	m.mu.Unlock()

	if !last.IsZero() && ev.Timestamp.Before(last) {
		m.logger.DebugContext(ctx, "Skipping event already covered by last sync",
			"event_type", ev.Type,
			"expense_id", ev.ID,
			"last_sync", last)
		return nil
	}

	m.logger.InfoContext(ctx, "Processing expense event",
		"event_type", ev.Type,
		"expense_id", ev.ID)

	if err := m.Sync(ctx); err != nil {
		return fmt.Errorf("sync after %s: %w", ev.Type, err)
	}
	return nil
}

// Sync re-exports the full list.
func (m *Mirror) Sync(ctx context.Context) error {
	started := m.now()

	list, err := m.expenses.ListExpenses(ctx)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	if err := m.exporter.Export(ctx, list); err != nil {
		return fmt.Errorf("export expenses: %w", err)
	}

	m.mu.Lock()
	if started.After(m.lastSync) {
		m.lastSync = started
	}
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "Mirror synced",
		"count", len(list),
		"duration", m.now().Sub(started))
	return nil
}

// LastSync returns when the last successful sync started.
func (m *Mirror) LastSync() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSync
}
