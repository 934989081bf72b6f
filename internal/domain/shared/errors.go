// Package shared contains common domain types, errors, and events
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

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// Idempotency / state errors
	ErrAlreadyApplied  = errors.New("already applied")
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Concurrency errors
	ErrVersionConflict = errors.New("version conflict detected")

	// Infrastructure errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "player", "award", "gameboard", "snapshot"
	Op      string // Operation that failed, e.g., "Apply", "Move"
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

// Player domain errors
var (
	ErrPlayerNotFound      = NewDomainError("player", "Find", ErrNotFound, "player not found")
	ErrPlayerAlreadyExists = NewDomainError("player", "Create", ErrAlreadyExists, "player already exists")
	ErrPlayerStaleVersion  = NewDomainError("player", "Save", ErrVersionConflict, "player record was modified concurrently")
)

// Award domain errors
var (
	ErrAwardNotFound       = NewDomainError("award", "Find", ErrNotFound, "award not found")
	ErrAwardAlreadyApplied = NewDomainError("award", "Apply", ErrAlreadyApplied, "award was already applied")
	ErrAwardInvalidAmount  = NewDomainError("award", "Validate", ErrValueOutOfRange, "award amount out of range")
	ErrAwardMissingQuest   = NewDomainError("award", "Validate", ErrEmptyValue, "quest is required for xp awards")
	ErrAwardMissingSkill   = NewDomainError("award", "Validate", ErrEmptyValue, "skill is required for skill-point awards")
)

// Gameboard domain errors
var (
	ErrStationNotFound   = NewDomainError("gameboard", "FindStation", ErrNotFound, "station not found")
	ErrNoMovesRemaining  = NewDomainError("gameboard", "Move", ErrInvalidState, "no moves remaining")
	ErrInvalidSkillLevel = NewDomainError("gameboard", "Resolve", ErrValueOutOfRange, "skill level must be between 1 and 5")
	ErrInvalidRollValue  = NewDomainError("gameboard", "Resolve", ErrValueOutOfRange, "roll value must be between 0 and 99")
)

// Snapshot domain errors
var (
	ErrSnapshotNotFound = NewDomainError("snapshot", "Find", ErrNotFound, "snapshot not found")
	ErrChecksumMismatch = NewDomainError("snapshot", "Verify", ErrInvalidState, "snapshot checksum does not match recorded state")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict checks if the error is an optimistic-concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsAlreadyApplied reports the idempotent no-op outcome of an award application.
func IsAlreadyApplied(err error) bool {
	return errors.Is(err, ErrAlreadyApplied)
}

// IsRetryable checks if the operation can be retried.
// Validation and not-found errors are never retried; conflicts are retried a
// bounded number of times by the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
