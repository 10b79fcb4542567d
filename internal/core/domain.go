package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDescriptionLength bounds the description accepted from forms.
const MaxDescriptionLength = 200

type (
	Category struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Expense struct {
		ID          int64      `json:"id"`
		Description string     `json:"description"`
		Amount      Money      `json:"amount"`
		Date        Date       `json:"date"`
		CreatedAt   *time.Time `json:"created_at,omitempty"`
		Category    *Category  `json:"category"` // nil means uncategorized
	}

	// Draft holds the user-supplied fields of an expense. The backend assigns
	// id and created_at.
	Draft struct {
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
		Date        Date   `json:"date"`
		CategoryID  *int64 `json:"category_id"`
	}

	// PartialDraft is an update payload: only fields that are set are sent.
	// SetCategory distinguishes "leave category alone" from "clear category".
	PartialDraft struct {
		Description *string
		Amount      *Money
		Date        *Date
		SetCategory bool
		CategoryID  *int64
	}
)

// CategoryID returns the joined category id, or nil when uncategorized.
func (e Expense) CategoryID() *int64 {
	if e.Category == nil {
		return nil
	}
	id := e.Category.ID
	return &id
}

// CategoryName returns the joined category name or "" when uncategorized.
func (e Expense) CategoryName() string {
	if e.Category == nil {
		return ""
	}
	return e.Category.Name
}

// Draft returns the user-editable part of the record.
func (e Expense) Draft() Draft {
	return Draft{
		Description: e.Description,
		Amount:      e.Amount,
		Date:        e.Date,
		CategoryID:  e.CategoryID(),
	}
}

func (d Draft) Validate() error {
	verr := &ValidationError{}
	desc := strings.TrimSpace(d.Description)
	switch {
	case desc == "":
		verr.Add(FieldDescription, ErrEmptyDescription)
	case utf8.RuneCountInString(desc) > MaxDescriptionLength:
		verr.Add(FieldDescription, ErrDescriptionTooLong)
	}
	if err := d.Amount.Validate(); err != nil {
		verr.Add(FieldAmount, err)
	}
	if err := d.Date.Validate(); err != nil {
		verr.Add(FieldDate, err)
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// Partial converts a full draft into an update touching every field.
func (d Draft) Partial() PartialDraft {
	desc := d.Description
	amount := d.Amount
	date := d.Date
	return PartialDraft{
		Description: &desc,
		Amount:      &amount,
		Date:        &date,
		SetCategory: true,
		CategoryID:  d.CategoryID,
	}
}

// Empty reports whether the update carries no field at all.
func (p PartialDraft) Empty() bool {
	return p.Description == nil && p.Amount == nil && p.Date == nil && !p.SetCategory
}

// Apply returns e with the set fields of p applied. The category name is left
// to the caller since it is resolved by the backend.
func (p PartialDraft) Apply(e Expense) Expense {
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	return e
}

func (p PartialDraft) Validate() error {
	if p.Empty() {
		return errors.New("empty update")
	}
	verr := &ValidationError{}
	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		switch {
		case desc == "":
			verr.Add(FieldDescription, ErrEmptyDescription)
		case utf8.RuneCountInString(desc) > MaxDescriptionLength:
			verr.Add(FieldDescription, ErrDescriptionTooLong)
		}
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			verr.Add(FieldAmount, err)
		}
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			verr.Add(FieldDate, err)
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// MarshalJSON emits only the fields that are set; a set but nil category is
// sent as an explicit null.
func (p PartialDraft) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 4)
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.Amount != nil {
		out["amount"] = *p.Amount
	}
	if p.Date != nil {
		out["date"] = *p.Date
	}
	if p.SetCategory {
		out["category_id"] = p.CategoryID
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the same shape MarshalJSON produces.
func (p *PartialDraft) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PartialDraft{}
	if v, ok := raw["description"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		p.Description = &s
	}
	if v, ok := raw["amount"]; ok {
		var m Money
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		p.Amount = &m
	}
	if v, ok := raw["date"]; ok {
		var d Date
		if err := json.Unmarshal(v, &d); err != nil {
			return err
		}
		p.Date = &d
	}
	if v, ok := raw["category_id"]; ok {
		p.SetCategory = true
		if string(v) != "null" {
			var id int64
			if err := json.Unmarshal(v, &id); err != nil {
				return err
			}
			p.CategoryID = &id
		}
	}
	return nil
}
