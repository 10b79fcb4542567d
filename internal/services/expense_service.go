package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"expenses/internal/amqp"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/store"
)

// EventPublisher is the outbound side of the event bus.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// Ensure interface conformance
var _ store.Gateway = (*ExpenseService)(nil)

// ExpenseService delegates to a gateway and announces confirmed writes on
// the event bus. A publish failure never fails the write.
type ExpenseService struct {
	gateway   store.Gateway
	publisher EventPublisher
	closers   []io.Closer
	logger    *slog.Logger
}

// NewExpenseService wraps gateway. publisher may be nil. Closers are closed
// in reverse order by Close.
func NewExpenseService(gateway store.Gateway, publisher EventPublisher, logger *slog.Logger, closers ...io.Closer) *ExpenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenseService{
		gateway:   gateway,
		publisher: publisher,
		closers:   closers,
		logger:    logger.With(applog.FieldComponent, applog.ComponentExpense),
	}
}

func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.gateway.ListExpenses(ctx)
}

func (s *ExpenseService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.gateway.ListCategories(ctx)
}

// CreateExpense saves the expense and publishes expense.created
func (s *ExpenseService) CreateExpense(ctx context.Context, d core.Draft) (core.Expense, error) {
	e, err := s.gateway.CreateExpense(ctx, d)
	if err != nil {
		return core.Expense{}, err
	}
	s.logWrite(ctx, "Expense created", applog.OpCreate, e)
	s.publish(ctx, amqp.EventExpenseCreated, e.ID)
	return e, nil
}

// UpdateExpense saves the change and publishes expense.updated
func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, p core.PartialDraft) (core.Expense, error) {
	e, err := s.gateway.UpdateExpense(ctx, id, p)
	if err != nil {
		return core.Expense{}, err
	}
	s.logWrite(ctx, "Expense updated", applog.OpUpdate, e)
	s.publish(ctx, amqp.EventExpenseUpdated, e.ID)
	return e, nil
}

// DeleteExpense removes the expense and publishes expense.deleted
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	if err := s.gateway.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Expense deleted", applog.FieldOperation, applog.OpDelete, applog.FieldExpenseID, id)
	s.publish(ctx, amqp.EventExpenseDeleted, id)
	return nil
}

func (s *ExpenseService) Ping(ctx context.Context) error {
	return s.gateway.Ping(ctx)
}

func (s *ExpenseService) logWrite(ctx context.Context, msg, op string, e core.Expense) {
	fields := applog.NewFields().
		WithOperation(op).
		WithExpense(e.ID, e.Description, e.Amount.Cents, e.CategoryID())
	s.logger.InfoContext(ctx, msg, fields.ToSlice()...)
}

func (s *ExpenseService) publish(ctx context.Context, t amqp.EventType, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, amqp.NewExpenseEvent(t, id)); err != nil {
		// Don't fail the request - the write is already confirmed
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldEventType, t, applog.FieldExpenseID, id, applog.FieldError, err)
	}
}

// Close closes the registered resources, last registered first.
func (s *ExpenseService) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}
