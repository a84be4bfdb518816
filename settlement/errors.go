/*
errors.go - Error taxonomy for the settlement engine

ERROR CATEGORIES:
  1. Validation - bad fee configuration or no games; blocks calculation
  2. Not found - session or operator missing; fatal to the current flow
  3. Persistence - store read/write failure; the operation aborts

Nothing in this package retries. Every error is returned to the caller.

USAGE:
  if errors.Is(err, settlement.ErrValidation) { ... 400 ... }
  var perr *settlement.PersistenceError
  if errors.As(err, &perr) { log perr.Op }
*/
package settlement

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNoFeeModeSelected is returned when none of the three court fee
	// fields holds a usable value.
	ErrNoFeeModeSelected = errors.New("no court fee mode selected")

	// ErrNoGames is returned when a calculation is requested for an empty game list.
	ErrNoGames = errors.New("no games in session")

	// ErrNotCalculated is returned when a save is attempted with a failed calculation.
	ErrNotCalculated = errors.New("calculation result is not valid")

	ErrSessionNotFound        = errors.New("session not found")
	ErrOperatorNotFound       = errors.New("operator not found")
	ErrPaymentHistoryNotFound = errors.New("payment history not found")

	// ErrPersistence is matched by every *PersistenceError.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError names the offending input.
type ValidationError struct {
	Field  string
	Reason string
	Err    error // optional cause, e.g. ErrNoFeeModeSelected
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// PersistenceError wraps a store failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// persistErr wraps store errors, leaving not-found errors untouched so
// callers can tell a missing document from a failing store.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether err was caused by caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrOperatorNotFound) ||
		errors.Is(err, ErrPaymentHistoryNotFound)
}
