package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed input; nothing was written.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced student, session or term did not resolve.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries field-level context for a rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a field-scoped validation error.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError identifies which entity failed to resolve.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError builds an entity-scoped not-found error.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// BatchError records a per-student failure inside a bulk operation.
// Bulk operations skip the failing student and continue.
type BatchError struct {
	StudentID string `json:"student_id"`
	Purpose   string `json:"purpose,omitempty"`
	Message   string `json:"message"`
}

// BatchResult summarises a bulk operation for the caller: "N records
// updated, M errors" rather than a single pass/fail flag.
type BatchResult struct {
	UpdatedCount int          `json:"updated_count"`
	Errors       []BatchError `json:"errors,omitempty"`
}

// AddError appends a per-student failure.
func (r *BatchResult) AddError(studentID, purpose string, err error) {
	r.Errors = append(r.Errors, BatchError{StudentID: studentID, Purpose: purpose, Message: err.Error()})
}

// UserSafeMessage returns an error string suitable for API consumers.
// Internal errors collapse to a generic message.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err.Error()
	default:
		return "internal error"
	}
}
