package gamificationservice

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOutcome is returned when an outcome is missing its user or attempt.
	ErrInvalidOutcome = errors.New("invalid attempt outcome")

	// ErrInvalidUserID is returned by queries that require a user.
	ErrInvalidUserID = errors.New("user id is required")

	// ErrLookupFailed is returned when the attempt operands could not be resolved.
	ErrLookupFailed = errors.New("attempt lookup failed")

	// ErrAttemptNotFound is returned when the quiz service has no such attempt.
	ErrAttemptNotFound = fmt.Errorf("%w: attempt not found", ErrLookupFailed)
)

// IsRetryable reports whether redelivering the same outcome could succeed.
// Validation errors and unknown attempts will fail the same way every time.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrInvalidOutcome),
		errors.Is(err, ErrInvalidUserID),
		errors.Is(err, ErrAttemptNotFound):
		return false
	}
	return true
}
