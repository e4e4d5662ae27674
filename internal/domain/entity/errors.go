package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrFeedGone indicates the feed was removed from the store (last
	// subscriber left, or pruned) between the time a worker was handed a
	// weak reference to it and the time it finished its work.
	ErrFeedGone = errors.New("feed no longer in store")

	// ErrNotSubscribed indicates the subscriber has no subscription to
	// the given feed.
	ErrNotSubscribed = errors.New("subscriber not subscribed to feed")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
