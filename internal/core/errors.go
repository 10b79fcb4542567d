package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Form field names shared by validation and presentation.
const (
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldDate        = "date"
	FieldCategory    = "category_id"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrBackend matches every *BackendError.
	ErrBackend = errors.New("backend error")

	ErrNotFound           = errors.New("not found")
	ErrBackendValidation  = errors.New("rejected by backend")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidCategory    = errors.New("invalid category")
)

// ValidationError collects client-side field failures. It blocks submission
// and never reaches the backend.
type ValidationError struct {
	Fields map[string]error
}

func (e *ValidationError) Add(field string, err error) {
	if e.Fields == nil {
		e.Fields = make(map[string]error)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = err
	}
}

func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k].Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	for _, err := range e.Fields {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// BackendError reports a transport or query failure of a gateway operation.
type BackendError struct {
	Op  string
	Err error
}

func NewBackendError(op string, err error) *BackendError {
	return &BackendError{Op: op, Err: err}
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackend }
