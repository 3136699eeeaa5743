package domain

import (
	"errors"
	"fmt"
)

// ValidationError marks a caller mistake: a missing or out-of-range field,
// an oversized batch, or a config patch that fails post-merge validation.
// It is always reported, never silently corrected, and never partially
// applied. Absence of an account from a graph snapshot is NOT a validation
// error; it degrades to a zero result.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for a named field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
