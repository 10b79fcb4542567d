// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user input
// and converting between cents and their decimal representation.
package core

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in cents. Arithmetic stays in integers; decimals are only
// used at the edges (parsing, formatting, JSON).
type Money struct {
	Cents int64
}

// ParseMoney converts a decimal string to Money with half-up rounding to the
// cent.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Zero,
// negative or malformed values yield ErrInvalidAmount.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234 cents
//	ParseMoney("12,345") -> 1235 cents
//	ParseMoney("0.004")  -> ErrInvalidAmount (rounds to zero)
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m, err := moneyFromDecimal(d)
	if err != nil {
		return Money{}, err
	}
	if m.Cents <= 0 {
		return Money{}, ErrInvalidAmount
	}
	return m, nil
}

// MoneyFromDecimal rounds d to the cent.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	return moneyFromDecimal(d)
}

func moneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Shift(2)
	if !cents.IsInteger() || cents.Abs().GreaterThan(decimal.NewFromInt(1<<62)) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount as a decimal with two fractional digits.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with exactly two decimals, e.g. "50.25".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) IsZero() bool { return m.Cents == 0 }

// MarshalJSON writes the amount as a JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*m = Money{}
		return nil
	}
	data = bytes.Trim(data, `"`)
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return ErrInvalidAmount
	}
	v, err := moneyFromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Sum adds up the amounts of the given expenses.
func Sum(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
