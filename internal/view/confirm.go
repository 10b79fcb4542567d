package view

import (
	"context"

	"expenses/internal/core"
)

// Confirmer asks the user whether e may be deleted.
type Confirmer interface {
	Confirm(ctx context.Context, e core.Expense) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, e core.Expense) bool

func (f ConfirmFunc) Confirm(ctx context.Context, e core.Expense) bool {
	return f(ctx, e)
}

// Answer is a Confirmer whose reply is already known, e.g. from a submitted
// form field or a command line flag.
type Answer bool

func (a Answer) Confirm(context.Context, core.Expense) bool { return bool(a) }
