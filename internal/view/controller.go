// Package view holds the per-session state behind the expense screens: the
// loaded lists, the date filter, the edit slot and the form. Presentation
// layers call the controller and render its snapshots.
package view

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/core"
	"expenses/internal/i18n"
	"expenses/internal/store"
)

var (
	ErrWriteInFlight   = errors.New("another write is in flight")
	ErrNothingToExport = errors.New("nothing to export")
	ErrUnknownExpense  = fmt.Errorf("expense is not loaded: %w", core.ErrNotFound)
)

// Snapshot is an immutable copy of the controller state plus the derived
// values. Slices are owned by the snapshot.
type Snapshot struct {
	Expenses   []core.Expense
	Categories []core.Category
	Filter     core.DateRange
	Editing    *core.Expense
	Form       Form
	// FieldErrors holds localized messages keyed by form field.
	FieldErrors map[string]string
	Error       string
	Notice      string
	Saving      bool
	Loaded      bool

	Filtered []core.Expense
	Total    core.Money
	Summary  []core.CategoryAmount
}

// IsEditing reports whether the edit slot is populated.
func (s Snapshot) IsEditing() bool { return s.Editing != nil }

type Option func(*Controller)

func WithMessages(m *i18n.Messages) Option {
	return func(c *Controller) { c.msgs = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is safe for concurrent use. Gateway calls run without holding
// the lock; at most one write is in flight at a time.
type Controller struct {
	gateway store.Gateway
	msgs    *i18n.Messages
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.Mutex
	expenses    []core.Expense
	categories  []core.Category
	filter      core.DateRange
	editing     *core.Expense
	form        Form
	fieldErrors map[string]string
	errMsg      string
	notice      string
	inFlight    bool
	loaded      bool

	observers map[int]func(Snapshot)
	nextObs   int
}

func New(gateway store.Gateway, opts ...Option) *Controller {
	c := &Controller{
		gateway:   gateway,
		msgs:      i18n.For(i18n.English),
		logger:    slog.Default(),
		now:       time.Now,
		observers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "view")
	c.form = c.defaultForm()
	return c
}

// Messages returns the catalog used for user-facing text.
func (c *Controller) Messages() *i18n.Messages { return c.msgs }

// Load fetches expenses and categories concurrently. Whatever succeeded is
// kept; a failure sets the matching message and is returned.
func (c *Controller) Load(ctx context.Context) error {
	var (
		g              errgroup.Group
		expenses       []core.Expense
		categories     []core.Category
		expErr, catErr error
	)
	g.Go(func() error {
		expenses, expErr = c.gateway.ListExpenses(ctx)
		return nil
	})
	g.Go(func() error {
		categories, catErr = c.gateway.ListCategories(ctx)
		return nil
	})
	_ = g.Wait()

	c.mu.Lock()
	if expErr == nil {
		c.expenses = expenses
		c.loaded = true
	} else {
		c.logger.ErrorContext(ctx, "Failed to load expenses", "operation", "list_expenses", "error", expErr)
	}
	if catErr == nil {
		c.categories = categories
		if c.editing == nil && c.form.CategoryID == "" && c.form.Description == "" && c.form.Amount == "" {
			c.form = c.defaultForm()
		}
	} else {
		c.logger.ErrorContext(ctx, "Failed to load categories", "operation", "list_categories", "error", catErr)
	}
	switch {
	case expErr != nil:
		c.errMsg = c.msgs.LoadExpensesFailed
	case catErr != nil:
		c.errMsg = c.msgs.LoadCategoriesFailed
	}
	c.mu.Unlock()
	c.notify()

	return errors.Join(expErr, catErr)
}

// Filtered returns the expenses whose date lies within the filter, in list
// order.
func (c *Controller) Filtered() []core.Expense {
	c.mu.Lock()
	defer c.mu.Unlock()
	return core.FilterByRange(c.expenses, c.filter)
}

// Total is the sum of Filtered.
func (c *Controller) Total() core.Money {
	return core.Sum(c.Filtered())
}

func (c *Controller) SetFilter(r core.DateRange) {
	c.mu.Lock()
	c.filter = r
	c.notice = ""
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) ClearFilter() {
	c.SetFilter(core.DateRange{})
}

// StartEdit puts e in the edit slot and mirrors it into the form.
func (c *Controller) StartEdit(e core.Expense) {
	c.mu.Lock()
	rec := e
	c.editing = &rec
	c.form = FormFor(e)
	c.fieldErrors = nil
	c.mu.Unlock()
	c.notify()
}

// StartEditID edits a loaded expense by id.
func (c *Controller) StartEditID(id int64) error {
	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return ErrUnknownExpense
	}
	e := c.expenses[i]
	c.mu.Unlock()
	c.StartEdit(e)
	return nil
}

// CancelEdit returns to Idle with a fresh form. The list is untouched.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
	c.notify()
}

// Save validates f and creates or updates depending on the edit slot.
// Invalid input returns a *core.ValidationError without calling the backend.
func (c *Controller) Save(ctx context.Context, f Form) (core.Expense, error) {
	d, err := f.Draft()
	if err != nil {
		var verr *core.ValidationError
		errors.As(err, &verr)
		c.mu.Lock()
		c.form = f
		c.fieldErrors = c.msgs.FieldErrors(verr)
		c.mu.Unlock()
		c.notify()
		return core.Expense{}, err
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return core.Expense{}, ErrWriteInFlight
	}
	c.inFlight = true
	var editing *core.Expense
	if c.editing != nil {
		e := *c.editing
		editing = &e
	}
	c.mu.Unlock()
	c.notify()

	var saved core.Expense
	if editing != nil {
		saved, err = c.gateway.UpdateExpense(ctx, editing.ID, d.Partial())
	} else {
		saved, err = c.gateway.CreateExpense(ctx, d)
	}

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.form = f
		c.fieldErrors = nil
		if editing != nil {
			c.errMsg = c.msgs.UpdateFailed
		} else {
			c.errMsg = c.msgs.AddFailed
		}
		c.mu.Unlock()
		c.logger.ErrorContext(ctx, "Failed to save expense",
			"operation", saveOp(editing),
			"error", err)
		c.notify()
		return core.Expense{}, err
	}

	if editing != nil {
		if i := c.indexOf(saved.ID); i >= 0 {
			c.expenses[i] = saved
		}
	} else {
		c.expenses = append([]core.Expense{saved}, c.expenses...)
		core.SortExpenses(c.expenses)
	}
	c.errMsg = ""
	c.resetLocked()
	c.mu.Unlock()
	c.notify()
	return saved, nil
}

func saveOp(editing *core.Expense) string {
	if editing != nil {
		return "update_expense"
	}
	return "create_expense"
}

// Delete asks confirm and, when approved, deletes the expense. It reports
// whether a delete was performed. A nil confirmer declines.
func (c *Controller) Delete(ctx context.Context, id int64, confirm Confirmer) (bool, error) {
	c.mu.Lock()
	target := core.Expense{ID: id}
	if i := c.indexOf(id); i >= 0 {
		target = c.expenses[i]
	}
	c.mu.Unlock()

	if confirm == nil || !confirm.Confirm(ctx, target) {
		return false, nil
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return false, ErrWriteInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	err := c.gateway.DeleteExpense(ctx, id)

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.errMsg = c.msgs.DeleteFailed
		c.mu.Unlock()
		c.logger.ErrorContext(ctx, "Failed to delete expense",
			"operation", "delete_expense",
			"expense_id", id,
			"error", err)
		c.notify()
		return false, err
	}
	c.expenses = slices.DeleteFunc(c.expenses, func(e core.Expense) bool { return e.ID == id })
	if c.editing != nil && c.editing.ID == id {
		c.resetLocked()
	}
	c.mu.Unlock()
	c.notify()
	return true, nil
}

// ExportCSV writes the filtered expenses to w. An empty selection sets a
// notice and returns ErrNothingToExport without writing anything.
func (c *Controller) ExportCSV(w io.Writer) error {
	rows := c.Filtered()
	if len(rows) == 0 {
		c.mu.Lock()
		c.notice = c.msgs.NothingToExport
		c.mu.Unlock()
		c.notify()
		return ErrNothingToExport
	}
	return WriteCSV(w, rows, c.msgs)
}

// DismissError clears the error message and any notice.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.errMsg = ""
	c.notice = ""
	c.mu.Unlock()
	c.notify()
}

// SetError shows msg as the current error, e.g. for failures detected by the
// presentation layer.
func (c *Controller) SetError(msg string) {
	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()
	c.notify()
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function unsubscribes.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Expenses:   slices.Clone(c.expenses),
		Categories: slices.Clone(c.categories),
		Filter:     c.filter,
		Form:       c.form,
		Error:      c.errMsg,
		Notice:     c.notice,
		Saving:     c.inFlight,
		Loaded:     c.loaded,
	}
	if c.editing != nil {
		e := *c.editing
		s.Editing = &e
	}
	if len(c.fieldErrors) > 0 {
		s.FieldErrors = make(map[string]string, len(c.fieldErrors))
		for k, v := range c.fieldErrors {
			s.FieldErrors[k] = v
		}
	}
	s.Filtered = core.FilterByRange(s.Expenses, s.Filter)
	s.Total = core.Sum(s.Filtered)
	s.Summary = core.SummarizeByCategory(s.Filtered)
	return s
}

func (c *Controller) notify() {
	c.mu.Lock()
	if len(c.observers) == 0 {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

func (c *Controller) resetLocked() {
	c.editing = nil
	c.form = c.defaultForm()
	c.fieldErrors = nil
}

// defaultForm is today's date, empty text and the first category.
func (c *Controller) defaultForm() Form {
	f := Form{Date: core.DateOf(c.now()).String()}
	if len(c.categories) > 0 {
		f.CategoryID = strconv.FormatInt(c.categories[0].ID, 10)
	}
	return f
}

func (c *Controller) indexOf(id int64) int {
	return slices.IndexFunc(c.expenses, func(e core.Expense) bool { return e.ID == id })
}
