// Package store defines the ports of the remote data gateway. Adapters live
// in subpackages: postgrest (hosted backend), postgres, sqlite, memory and the
// cached decorator.
package store

import (
	"context"

	"expenses/internal/core"
)

// Ports for outbound adapters.
type (
	ExpenseLister interface {
		// ListExpenses returns every expense ordered by date descending, then
		// creation time descending, with the category joined.
		ListExpenses(ctx context.Context) ([]core.Expense, error)
	}

	CategoryLister interface {
		// ListCategories returns every category ordered by name ascending.
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	ExpenseWriter interface {
		CreateExpense(ctx context.Context, d core.Draft) (core.Expense, error)
		// UpdateExpense returns an error wrapping core.ErrNotFound when id
		// does not exist.
		UpdateExpense(ctx context.Context, id int64, p core.PartialDraft) (core.Expense, error)
	}

	// ExpenseDeleter removes an expense. Deleting an unknown id succeeds.
	ExpenseDeleter interface {
		DeleteExpense(ctx context.Context, id int64) error
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Gateway is the full remote data gateway.
	Gateway interface {
		ExpenseLister
		CategoryLister
		ExpenseWriter
		ExpenseDeleter
		Pinger
	}
)
