package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-01")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, 2, 1), d)

	d, err = ParseDate("2024-02-01T10:11:12+00:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-01", d.String())

	_, err = ParseDate("2024-02-30")
	assert.ErrorIs(t, err, ErrInvalidDate)
	_, err = ParseDate("")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-05"`, string(b))

	var d Date
	require.NoError(t, json.Unmarshal([]byte(`"2024-01-05"`), &d))
	assert.Equal(t, NewDate(2024, 1, 5), d)
}

func TestFilterByRange(t *testing.T) {
	expenses := []Expense{
		{ID: 1, Amount: Money{Cents: 5000}, Date: NewDate(2024, 1, 5)},
		{ID: 2, Amount: Money{Cents: 3000}, Date: NewDate(2024, 2, 1)},
		{ID: 3, Amount: Money{Cents: 1000}, Date: NewDate(2024, 3, 10)},
	}
	from := NewDate(2024, 2, 1)
	to := NewDate(2024, 2, 1)
	jan := NewDate(2024, 1, 31)

	tests := []struct {
		name string
		r    DateRange
		ids  []int64
	}{
		{"unbounded", DateRange{}, []int64{1, 2, 3}},
		{"from only, inclusive", DateRange{From: &from}, []int64{2, 3}},
		{"to only", DateRange{To: &jan}, []int64{1}},
		{"single day", DateRange{From: &from, To: &to}, []int64{2}},
		{"empty", DateRange{From: &to, To: &jan}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByRange(expenses, tt.r)
			ids := make([]int64, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestFilterExampleTotal(t *testing.T) {
	expenses := []Expense{
		{ID: 1, Amount: Money{Cents: 5000}, Date: NewDate(2024, 1, 5)},
		{ID: 2, Amount: Money{Cents: 3000}, Date: NewDate(2024, 2, 1)},
	}
	r, err := ParseDateRange("2024-02-01", "")
	require.NoError(t, err)
	filtered := FilterByRange(expenses, r)
	require.Len(t, filtered, 1)
	assert.Equal(t, int64(2), filtered[0].ID)
	assert.Equal(t, "30.00", Sum(filtered).String())
}

func TestSortExpenses(t *testing.T) {
	t1 := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	list := []Expense{
		{ID: 1, Date: NewDate(2024, 1, 5), CreatedAt: &t1},
		{ID: 2, Date: NewDate(2024, 2, 1)},
		{ID: 3, Date: NewDate(2024, 1, 5), CreatedAt: &t2},
		{ID: 4, Date: NewDate(2024, 1, 5)},
	}
	SortExpenses(list)
	ids := []int64{list[0].ID, list[1].ID, list[2].ID, list[3].ID}
	assert.Equal(t, []int64{2, 3, 1, 4}, ids)
}

func TestSortCategories(t *testing.T) {
	cats := []Category{{ID: 1, Name: "Transport"}, {ID: 2, Name: "Food"}, {ID: 3, Name: "Rent"}}
	SortCategories(cats)
	assert.Equal(t, []string{"Food", "Rent", "Transport"}, []string{cats[0].Name, cats[1].Name, cats[2].Name})
}
