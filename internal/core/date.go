package core

import (
	"bytes"
	"slices"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on the wire and in forms.
const DateLayout = "2006-01-02"

// Date is a calendar date at UTC midnight.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses YYYY-MM-DD. A full timestamp is accepted and truncated to
// its date part, since some backends return date columns that way.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) && (s[len(DateLayout)] == 'T' || s[len(DateLayout)] == ' ') {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Compare returns -1, 0 or +1 comparing calendar dates.
func (d Date) Compare(o Date) int {
	return d.Time.Compare(o.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" || string(data) == `""` {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive date filter; a nil bound imposes no constraint
// on that side.
type DateRange struct {
	From *Date
	To   *Date
}

func (r DateRange) IsZero() bool { return r.From == nil && r.To == nil }

func (r DateRange) Contains(d Date) bool {
	if r.From != nil && d.Compare(*r.From) < 0 {
		return false
	}
	if r.To != nil && d.Compare(*r.To) > 0 {
		return false
	}
	return true
}

// ParseDateRange builds a range from two optional YYYY-MM-DD strings.
func ParseDateRange(from, to string) (DateRange, error) {
	var r DateRange
	if strings.TrimSpace(from) != "" {
		d, err := ParseDate(from)
		if err != nil {
			return DateRange{}, err
		}
		r.From = &d
	}
	if strings.TrimSpace(to) != "" {
		d, err := ParseDate(to)
		if err != nil {
			return DateRange{}, err
		}
		r.To = &d
	}
	return r, nil
}

// FilterByRange returns the expenses within r, preserving order.
func FilterByRange(expenses []Expense, r DateRange) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if r.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

// SortExpenses orders by date descending, then creation time descending,
// then id descending. Records without a creation time sort last within a day.
func SortExpenses(expenses []Expense) {
	slices.SortStableFunc(expenses, compareExpenses)
}

func compareExpenses(a, b Expense) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	switch {
	case a.CreatedAt != nil && b.CreatedAt != nil:
		if c := b.CreatedAt.Compare(*a.CreatedAt); c != 0 {
			return c
		}
	case a.CreatedAt != nil:
		return -1
	case b.CreatedAt != nil:
		return 1
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

// SortCategories orders categories by name ascending.
func SortCategories(categories []Category) {
	slices.SortStableFunc(categories, func(a, b Category) int {
		return strings.Compare(a.Name, b.Name)
	})
}
