package apperr

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced class, student, user or record id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable marks failures of the storage collaborator.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError reports structurally invalid input.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError builds a ValidationError from one or more field errors.
func NewValidationError(flds ...FieldError) error {
	return &ValidationError{Fields: flds}
}

// Invalid is shorthand for a single-field ValidationError.
func Invalid(field, msg string) error {
	return NewValidationError(FieldError{Field: field, Error: msg})
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Error)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type unavailable struct {
	op  string
	err error
}

// Unavailable wraps a storage failure so it matches ErrStoreUnavailable while
// keeping the original cause reachable through errors.Is / errors.As.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &unavailable{op: op, err: err}
}

func (e *unavailable) Error() string {
	return e.op + ": " + ErrStoreUnavailable.Error() + ": " + e.err.Error()
}

func (e *unavailable) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.err}
}
