package postgrest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"expenses/internal/core"
)

// expenseRow is the raw shape returned for the expense select. The category
// embed may come back as an object, an array or null depending on how the
// relationship is detected, so it is decoded lazily.
type expenseRow struct {
	ID          int64           `json:"id"`
	Description string          `json:"description"`
	Amount      core.Money      `json:"amount"`
	Date        core.Date       `json:"date"`
	CreatedAt   *string         `json:"created_at"`
	Category    json.RawMessage `json:"category"`
}

func (r expenseRow) toExpense() (core.Expense, error) {
	cat, err := normalizeCategory(r.Category)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: %w", r.ID, err)
	}
	e := core.Expense{
		ID:          r.ID,
		Description: r.Description,
		Amount:      r.Amount,
		Date:        r.Date,
		Category:    cat,
	}
	if r.CreatedAt != nil && *r.CreatedAt != "" {
		ts, err := parseTimestamp(*r.CreatedAt)
		if err != nil {
			return core.Expense{}, fmt.Errorf("expense %d: %w", r.ID, err)
		}
		e.CreatedAt = &ts
	}
	return e, nil
}

// normalizeCategory collapses the joined category into a single nullable
// value: object -> itself, array -> first element or nil, null -> nil.
func normalizeCategory(raw json.RawMessage) (*core.Category, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch raw[0] {
	case '{':
		var c core.Category
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decode category: %w", err)
		}
		return &c, nil
	case '[':
		var cs []core.Category
		if err := json.Unmarshal(raw, &cs); err != nil {
			return nil, fmt.Errorf("decode category list: %w", err)
		}
		if len(cs) == 0 {
			return nil, nil
		}
		return &cs[0], nil
	default:
		return nil, fmt.Errorf("unexpected category shape %q", string(raw))
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// APIError is the error body PostgREST sends with 4xx/5xx answers.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend status %d", e.Status)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if e.Details != "" {
		b.WriteString("; " + e.Details)
	}
	return b.String()
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
