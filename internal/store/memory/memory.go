package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"expenses/internal/core"
)

// Store is an in-process gateway. Ids and creation timestamps are assigned
// here the way a database would.
type Store struct {
	mu     sync.Mutex
	cats   []core.Category
	items  []core.Expense
	nextID int64
	now    func() time.Time
}

func New(cats []string) *Store {
	s := &Store{nextID: 1, now: time.Now}
	for i, name := range dedupe(cats) {
		s.cats = append(s.cats, core.Category{ID: int64(i + 1), Name: name})
	}
	core.SortCategories(s.cats)
	return s
}

func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = []string{"Food", "Transport", "Housing", "Utilities", "Entertainment"}
	}
	return New(cats)
}

// WithClock overrides the creation timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) ListExpenses(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, s.join(e))
	}
	core.SortExpenses(out)
	return out, nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.cats...), nil
}

func (s *Store) CreateExpense(_ context.Context, d core.Draft) (core.Expense, error) {
	if err := d.Validate(); err != nil {
		return core.Expense{}, core.NewBackendError("create expense", fmt.Errorf("%w: %s", core.ErrBackendValidation, err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.CategoryID != nil && !s.hasCategory(*d.CategoryID) {
		return core.Expense{}, core.NewBackendError("create expense", core.ErrBackendValidation)
	}
	created := s.now().UTC()
	e := core.Expense{
		ID:          s.nextID,
		Description: strings.TrimSpace(d.Description),
		Amount:      d.Amount,
		Date:        d.Date,
		CreatedAt:   &created,
	}
	if d.CategoryID != nil {
		e.Category = &core.Category{ID: *d.CategoryID}
	}
	s.nextID++
	s.items = append(s.items, e)
	return s.join(e), nil
}

func (s *Store) UpdateExpense(_ context.Context, id int64, p core.PartialDraft) (core.Expense, error) {
	if err := p.Validate(); err != nil {
		return core.Expense{}, core.NewBackendError("update expense", fmt.Errorf("%w: %s", core.ErrBackendValidation, err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.items {
		if e.ID != id {
			continue
		}
		if p.SetCategory {
			if p.CategoryID != nil && !s.hasCategory(*p.CategoryID) {
				return core.Expense{}, core.NewBackendError("update expense", core.ErrBackendValidation)
			}
			e.Category = nil
			if p.CategoryID != nil {
				e.Category = &core.Category{ID: *p.CategoryID}
			}
		}
		e = p.Apply(e)
		e.Description = strings.TrimSpace(e.Description)
		s.items[i] = e
		return s.join(e), nil
	}
	return core.Expense{}, core.NewBackendError("update expense", core.ErrNotFound)
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.items {
		if e.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

// join resolves the category name; callers hold s.mu.
func (s *Store) join(e core.Expense) core.Expense {
	if e.Category == nil {
		return e
	}
	for _, c := range s.cats {
		if c.ID == e.Category.ID {
			cat := c
			e.Category = &cat
			return e
		}
	}
	e.Category = nil
	return e
}

func (s *Store) hasCategory(id int64) bool {
	for _, c := range s.cats {
		if c.ID == id {
			return true
		}
	}
	return false
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
