// Package sqlite is an embedded gateway backed by modernc.org/sqlite with the
// same schema and ordering as the hosted backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"expenses/internal/core"
	"expenses/internal/store"
)

const (
	driverName = "sqlite"
	// createdAtLayout is fixed-width so that text ordering matches time ordering.
	createdAtLayout = "2006-01-02T15:04:05.000000Z07:00"
)

const selectExpenses = `
SELECT e.id, e.description, e.amount_cents, e.date, e.created_at, c.id, c.name
FROM expenses e
LEFT JOIN categories c ON c.id = e.category_id`

const expenseOrder = ` ORDER BY e.date DESC, e.created_at DESC, e.id DESC`

// Ensure interface conformance
var _ store.Gateway = (*Repository)(nil)

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// DSN builds the connection string with foreign keys enforced.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewRepository(dbPath string, logger *slog.Logger) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := DSN(dbPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{
		db:     db,
		logger: logger.With("component", "storage", "backend", "sqlite"),
		now:    time.Now,
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.NewBackendError("ping", err)
	}
	return nil
}

func (r *Repository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, selectExpenses+expenseOrder)
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
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, core.NewBackendError("list categories", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, core.NewBackendError("list categories", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewBackendError("list categories", err)
	}
	return out, nil
}

func (r *Repository) CreateExpense(ctx context.Context, d core.Draft) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (description, amount_cents, date, category_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		strings.TrimSpace(d.Description), d.Amount.Cents, dateArg(d.Date), nullableID(d.CategoryID),
		r.now().UTC().Format(createdAtLayout))
	if err != nil {
		return core.Expense{}, core.NewBackendError("create expense", classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, core.NewBackendError("create expense", err)
	}

	e, err := r.get(ctx, id)
	if err != nil {
		return core.Expense{}, core.NewBackendError("create expense", err)
	}

	r.logger.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"description", e.Description,
		"amount_cents", e.Amount.Cents)
	return e, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, id int64, p core.PartialDraft) (core.Expense, error) {
	sets, args := updateClause(p)
	if len(sets) == 0 {
		return core.Expense{}, core.NewBackendError("update expense", fmt.Errorf("%w: empty update", core.ErrBackendValidation))
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `UPDATE expenses SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return core.Expense{}, core.NewBackendError("update expense", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Expense{}, core.NewBackendError("update expense", err)
	}
	if n == 0 {
		return core.Expense{}, core.NewBackendError("update expense", core.ErrNotFound)
	}

	e, err := r.get(ctx, id)
	if err != nil {
		return core.Expense{}, core.NewBackendError("update expense", err)
	}
	return e, nil
}

func (r *Repository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return core.NewBackendError("delete expense", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.logger.DebugContext(ctx, "Delete matched no expense", "id", id)
	}
	return nil
}

func (r *Repository) get(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, selectExpenses+` WHERE e.id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e         core.Expense
		cents     int64
		date      string
		createdAt sql.NullString
		catID     sql.NullInt64
		catName   sql.NullString
	)
	if err := s.Scan(&e.ID, &e.Description, &cents, &date, &createdAt, &catID, &catName); err != nil {
		return core.Expense{}, err
	}
	e.Amount = core.Money{Cents: cents}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	e.Date = d
	if createdAt.Valid && createdAt.String != "" {
		if ts, err := time.Parse(time.RFC3339Nano, createdAt.String); err == nil {
			ts = ts.UTC()
			e.CreatedAt = &ts
		}
	}
	if catID.Valid {
		e.Category = &core.Category{ID: catID.Int64, Name: catName.String}
	}
	return e, nil
}

func updateClause(p core.PartialDraft) ([]string, []any) {
	var sets []string
	var args []any
	if p.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, strings.TrimSpace(*p.Description))
	}
	if p.Amount != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, p.Amount.Cents)
	}
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, dateArg(*p.Date))
	}
	if p.SetCategory {
		sets = append(sets, "category_id = ?")
		args = append(args, nullableID(p.CategoryID))
	}
	return sets, args
}

// dateArg stores a zero date as NULL so the NOT NULL constraint rejects it.
func dateArg(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// classify maps constraint violations to core.ErrBackendValidation.
func classify(err error) error {
	var se *msqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %v", core.ErrBackendValidation, err)
	}
	return err
}
