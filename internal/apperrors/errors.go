package apperrors

import (
	"errors"
	"fmt"
)

// Common error types shared across the hearth services.

// NotFoundError represents a resource that doesn't exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConflictError represents a conflict with existing state.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ValidationError represents invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// StatusError carries the HTTP status returned by an entity endpoint so
// callers can distinguish authorization failures (403) from missing
// records (404) and everything else.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("entity request failed (status %d): %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status embedded in err, or 0 if err does
// not wrap a StatusError.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
