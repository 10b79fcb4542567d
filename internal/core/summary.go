package core

import "slices"

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	Category *Category // nil for uncategorized
	Amount   Money
	Count    int
}

// SummarizeByCategory aggregates amounts per category, largest first.
// Uncategorized expenses share one bucket with a nil Category.
func SummarizeByCategory(expenses []Expense) []CategoryAmount {
	idx := map[int64]int{}
	uncategorized := -1
	var out []CategoryAmount
	for _, e := range expenses {
		pos := uncategorized
		if e.Category != nil {
			p, ok := idx[e.Category.ID]
			if !ok {
				p = -1
			}
			pos = p
		}
		if pos < 0 {
			var cat *Category
			if e.Category != nil {
				c := *e.Category
				cat = &c
			}
			out = append(out, CategoryAmount{Category: cat})
			pos = len(out) - 1
			if cat == nil {
				uncategorized = pos
			} else {
				idx[cat.ID] = pos
			}
		}
		out[pos].Amount = out[pos].Amount.Add(e.Amount)
		out[pos].Count++
	}
	slices.SortStableFunc(out, func(a, b CategoryAmount) int {
		switch {
		case a.Amount.Cents > b.Amount.Cents:
			return -1
		case a.Amount.Cents < b.Amount.Cents:
			return 1
		}
		return 0
	})
	return out
}
