// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrConflict      = errors.New("conflicting state")
	ErrInternal      = errors.New("internal error")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "match", "scoring", "leaderboard"
	Op      string // Operation that failed, e.g., "Register", "Points"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Match domain errors
var (
	ErrMatchNotFound        = NewDomainError("match", "Find", ErrNotFound, "match not found")
	ErrDuplicateMatch       = NewDomainError("match", "Append", ErrAlreadyExists, "match already registered")
	ErrMalformedRecord      = NewDomainError("match", "Validate", ErrInvalidFormat, "malformed match record")
	ErrEmptyGame            = NewDomainError("match", "Validate", ErrEmptyValue, "game title is required")
	ErrTooFewParticipants   = NewDomainError("match", "Validate", ErrValueOutOfRange, "not enough participants")
	ErrTooManyParticipants  = NewDomainError("match", "Validate", ErrValueOutOfRange, "too many participants")
	ErrDuplicateParticipant = NewDomainError("match", "Validate", ErrInvalidInput, "participant listed more than once")
	ErrInvalidPlayerID      = NewDomainError("match", "Validate", ErrInvalidID, "invalid player id")
)

// Scoring domain errors
var (
	ErrInvalidPosition     = NewDomainError("scoring", "Points", ErrValueOutOfRange, "invalid finishing position")
	ErrInvalidScoringTable = NewDomainError("scoring", "LoadTable", ErrInvalidInput, "invalid scoring table")
)

// Leaderboard domain errors
var (
	ErrInvalidTimeWindow = NewDomainError("leaderboard", "ParseWindow", ErrInvalidInput, "unknown time window")
	ErrPlayerNotFound    = NewDomainError("leaderboard", "Resolve", ErrNotFound, "player not found")
	ErrStandingNotFound  = NewDomainError("leaderboard", "FindStanding", ErrNotFound, "player has no matches in scope")
)

// Broadcast errors
var (
	ErrBroadcastFailed = NewDomainError("broadcast", "Send", ErrExternalService, "failed to deliver ranking broadcast")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsConflict checks if the error means the request clashes with stored state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
