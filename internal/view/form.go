package view

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"expenses/internal/core"
)

// Form mirrors the add/edit form as the user typed it.
type Form struct {
	Description string
	Amount      string
	Date        string
	CategoryID  string // "" means uncategorized
}

// FormFor fills a form from a stored expense.
func FormFor(e core.Expense) Form {
	f := Form{
		Description: e.Description,
		Amount:      e.Amount.String(),
		Date:        e.Date.String(),
	}
	if e.Category != nil {
		f.CategoryID = strconv.FormatInt(e.Category.ID, 10)
	}
	return f
}

// Draft validates the form and converts it. Every failing field is reported.
func (f Form) Draft() (core.Draft, error) {
	verr := &core.ValidationError{}
	d := core.Draft{Description: strings.TrimSpace(f.Description)}

	switch {
	case d.Description == "":
		verr.Add(core.FieldDescription, core.ErrEmptyDescription)
	case utf8.RuneCountInString(d.Description) > core.MaxDescriptionLength:
		verr.Add(core.FieldDescription, core.ErrDescriptionTooLong)
	}

	amount, err := core.ParseMoney(f.Amount)
	if err != nil {
		verr.Add(core.FieldAmount, err)
	}
	d.Amount = amount

	date, err := core.ParseDate(f.Date)
	if err != nil {
		verr.Add(core.FieldDate, err)
	}
	d.Date = date

	if c := strings.TrimSpace(f.CategoryID); c != "" {
		id, err := strconv.ParseInt(c, 10, 64)
		if err != nil || id <= 0 {
			verr.Add(core.FieldCategory, core.ErrInvalidCategory)
		} else {
			d.CategoryID = &id
		}
	}

	if !verr.Empty() {
		return core.Draft{}, verr
	}
	return d, nil
}
