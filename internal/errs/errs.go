// Package errs defines the error taxonomy shared by the procurement core.
// This package has no internal dependencies so it can be imported anywhere.
package errs

import (
	"errors"
	"fmt"
)

// ErrEmptyRequest is returned when a draft is requested without any forecast lines.
var ErrEmptyRequest = errors.New("procurement request must contain at least one line")

// ErrNotFound is returned by repositories when a row does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports caller-correctable input problems.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PermissionDeniedError is returned when a scope or role check fails.
// Reason always names the specific rule that rejected the attempt.
type PermissionDeniedError struct {
	UserID string
	Action string
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s: %s", e.UserID, e.Action, e.Reason)
}

// IllegalTransitionError is returned when no edge exists between two stages.
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s -> %s", e.From, e.To)
}

// StaleStageError is returned when another actor transitioned the request first.
// The caller should re-fetch the request and retry, or surface the conflict.
type StaleStageError struct {
	RequestID string
	Expected  string
}

func (e *StaleStageError) Error() string {
	return fmt.Sprintf("request %s is no longer in stage %s", e.RequestID, e.Expected)
}

// PersistenceError wraps a storage failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Persistence wraps err as a PersistenceError. Returns nil when err is nil.
// Errors that are already typed by this package pass through unchanged.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	var se *StaleStageError
	if errors.As(err, &se) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// NotFound reports a missing entity while still matching ErrNotFound.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// IsRetryable reports whether the caller may re-fetch and retry.
func IsRetryable(err error) bool {
	var se *StaleStageError
	return errors.As(err, &se)
}
