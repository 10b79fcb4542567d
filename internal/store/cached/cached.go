// Package cached is a read-through caching decorator for a store.Gateway.
// Lists are cached as JSON; every confirmed write drops the expense list.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"expenses/internal/cache"
	"expenses/internal/core"
	"expenses/internal/store"
)

const (
	KeyExpenses   = "expenses:list"
	KeyCategories = "categories:list"
)

// Ensure interface conformance
var _ store.Gateway = (*Gateway)(nil)

type Gateway struct {
	next   store.Gateway
	cache  cache.Store
	ttl    time.Duration
	logger *slog.Logger
}

func New(next store.Gateway, c cache.Store, ttl time.Duration, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{next: next, cache: c, ttl: ttl, logger: logger.With("component", "cache")}
}

func (g *Gateway) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return readThrough(ctx, g, KeyExpenses, g.next.ListExpenses)
}

func (g *Gateway) ListCategories(ctx context.Context) ([]core.Category, error) {
	return readThrough(ctx, g, KeyCategories, g.next.ListCategories)
}

func (g *Gateway) CreateExpense(ctx context.Context, d core.Draft) (core.Expense, error) {
	e, err := g.next.CreateExpense(ctx, d)
	if err != nil {
		return e, err
	}
	g.invalidate(ctx)
	return e, nil
}

func (g *Gateway) UpdateExpense(ctx context.Context, id int64, p core.PartialDraft) (core.Expense, error) {
	e, err := g.next.UpdateExpense(ctx, id, p)
	if err != nil {
		return e, err
	}
	g.invalidate(ctx)
	return e, nil
}

func (g *Gateway) DeleteExpense(ctx context.Context, id int64) error {
	if err := g.next.DeleteExpense(ctx, id); err != nil {
		return err
	}
	g.invalidate(ctx)
	return nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}

// Invalidate drops every cached list.
func (g *Gateway) Invalidate(ctx context.Context) error {
	return g.cache.Delete(ctx, KeyExpenses, KeyCategories)
}

func (g *Gateway) invalidate(ctx context.Context) {
	if err := g.cache.Delete(ctx, KeyExpenses); err != nil {
		g.logger.WarnContext(ctx, "Failed to invalidate cached expenses", "error", err)
	}
}

// readThrough serves key from the cache, falling back to load. Cache failures
// are logged and never surface to the caller.
func readThrough[T any](ctx context.Context, g *Gateway, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	raw, err := g.cache.Get(ctx, key)
	switch {
	case err == nil:
		var out []T
		if jerr := json.Unmarshal(raw, &out); jerr == nil {
			return out, nil
		}
		g.logger.WarnContext(ctx, "Dropping undecodable cache entry", "key", key)
	case !errors.Is(err, cache.ErrMiss):
		g.logger.WarnContext(ctx, "Cache read failed", "key", key, "error", err)
	}

	out, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if buf, jerr := json.Marshal(out); jerr == nil {
		if serr := g.cache.Set(ctx, key, buf, g.ttl); serr != nil {
			g.logger.WarnContext(ctx, "Cache write failed", "key", key, "error", serr)
		}
	}
	return out, nil
}
