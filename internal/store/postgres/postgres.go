// Package postgres is a gateway talking to PostgreSQL directly through a pgx
// pool, for deployments that host the expenses schema themselves.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"expenses/internal/core"
	"expenses/internal/store"
)

const selectExpenses = `
SELECT e.id, e.description, e.amount::text, to_char(e.date, 'YYYY-MM-DD'), e.created_at, c.id, c.name
FROM expenses e
LEFT JOIN categories c ON c.id = e.category_id`

// Ensure interface conformance
var _ store.Gateway = (*Repository)(nil)

type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NormalizeURL accepts postgresql:// URLs and defaults sslmode to disable.
func NormalizeURL(databaseURL string) string {
	databaseURL = strings.TrimSpace(databaseURL)
	if strings.HasPrefix(databaseURL, "postgresql://") {
		databaseURL = "postgres://" + strings.TrimPrefix(databaseURL, "postgresql://")
	}
	if databaseURL != "" && !strings.Contains(databaseURL, "sslmode=") {
		sep := "?"
		if strings.Contains(databaseURL, "?") {
			sep = "&"
		}
		databaseURL += sep + "sslmode=disable"
	}
	return databaseURL
}

// Connect opens a pool and waits up to connectTimeout for the database to
// answer a ping.
func Connect(ctx context.Context, databaseURL string, connectTimeout time.Duration, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(NormalizeURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	deadline := time.Now().Add(connectTimeout)
	for attempt := 1; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to database after %d attempts: %w", attempt, err)
		}
		logger.WarnContext(ctx, "Database not ready, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
	}

	return &Repository{pool: pool, logger: logger.With("component", "storage", "backend", "postgres")}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return core.NewBackendError("ping", err)
	}
	return nil
}

func (r *Repository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.pool.Query(ctx, selectExpenses+` ORDER BY e.date DESC, e.created_at DESC, e.id DESC`)
	if err != nil {
		return nil, core.NewBackendError("list expenses", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, core.NewBackendError("list expenses", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewBackendError("list expenses", err)
	}
	return out, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, core.NewBackendError("list categories", err)
	}
	cats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Category, error) {
		var c core.Category
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
	if err != nil {
		return nil, core.NewBackendError("list categories", err)
	}
	if cats == nil {
		cats = []core.Category{}
	}
	return cats, nil
}

func (r *Repository) CreateExpense(ctx context.Context, d core.Draft) (core.Expense, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO expenses (description, amount, date, category_id)
		 VALUES ($1, $2::numeric, $3::date, $4) RETURNING id`,
		strings.TrimSpace(d.Description), d.Amount.String(), dateArg(d.Date), d.CategoryID,
	).Scan(&id)
	if err != nil {
		return core.Expense{}, core.NewBackendError("create expense", classify(err))
	}
	e, err := r.get(ctx, id)
	if err != nil {
		return core.Expense{}, core.NewBackendError("create expense", err)
	}
	r.logger.InfoContext(ctx, "Expense saved to PostgreSQL", "id", e.ID, "amount_cents", e.Amount.Cents)
	return e, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, id int64, p core.PartialDraft) (core.Expense, error) {
	var (
		sets []string
		args []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}
	if p.Description != nil {
		add("description = $%d", strings.TrimSpace(*p.Description))
	}
	if p.Amount != nil {
		add("amount = $%d::numeric", p.Amount.String())
	}
	if p.Date != nil {
		add("date = $%d::date", dateArg(*p.Date))
	}
	if p.SetCategory {
		add("category_id = $%d", p.CategoryID)
	}
	if len(sets) == 0 {
		return core.Expense{}, core.NewBackendError("update expense", fmt.Errorf("%w: empty update", core.ErrBackendValidation))
	}
	args = append(args, id)

	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE expenses SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return core.Expense{}, core.NewBackendError("update expense", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return core.Expense{}, core.NewBackendError("update expense", core.ErrNotFound)
	}
	e, err := r.get(ctx, id)
	if err != nil {
		return core.Expense{}, core.NewBackendError("update expense", err)
	}
	return e, nil
}

func (r *Repository) DeleteExpense(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id); err != nil {
		return core.NewBackendError("delete expense", err)
	}
	return nil
}

func (r *Repository) get(ctx context.Context, id int64) (core.Expense, error) {
	e, err := scanExpense(r.pool.QueryRow(ctx, selectExpenses+` WHERE e.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	return e, err
}

func scanExpense(row pgx.Row) (core.Expense, error) {
	var (
		e         core.Expense
		amount    string
		date      string
		createdAt *time.Time
		catID     *int64
		catName   *string
	)
	if err := row.Scan(&e.ID, &e.Description, &amount, &date, &createdAt, &catID, &catName); err != nil {
		return core.Expense{}, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d amount: %w", e.ID, err)
	}
	if e.Amount, err = core.MoneyFromDecimal(dec); err != nil {
		return core.Expense{}, fmt.Errorf("expense %d amount: %w", e.ID, err)
	}
	if e.Date, err = core.ParseDate(date); err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	if createdAt != nil {
		ts := createdAt.UTC()
		e.CreatedAt = &ts
	}
	if catID != nil {
		e.Category = &core.Category{ID: *catID}
		if catName != nil {
			e.Category.Name = *catName
		}
	}
	return e, nil
}

func dateArg(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

// classify maps integrity violations (class 23) and invalid text input to
// core.ErrBackendValidation.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "23") || pgErr.Code == "22P02") {
		return fmt.Errorf("%w: %s", core.ErrBackendValidation, pgErr.Message)
	}
	return err
}
