package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeByCategory(t *testing.T) {
	food := &Category{ID: 1, Name: "Food"}
	rent := &Category{ID: 2, Name: "Rent"}
	got := SummarizeByCategory([]Expense{
		{ID: 1, Amount: Money{Cents: 500}, Category: food},
		{ID: 2, Amount: Money{Cents: 100000}, Category: rent},
		{ID: 3, Amount: Money{Cents: 700}},
		{ID: 4, Amount: Money{Cents: 250}, Category: food},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "Rent", got[0].Category.Name)
	assert.Equal(t, int64(750), got[1].Amount.Cents)
	assert.Equal(t, 2, got[1].Count)
	assert.Nil(t, got[2].Category)
	assert.Equal(t, int64(700), got[2].Amount.Cents)

	assert.Empty(t, SummarizeByCategory(nil))
}
