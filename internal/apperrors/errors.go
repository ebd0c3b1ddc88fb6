// Package apperrors defines the typed errors shared across the application.
//
// Each error type matches one of the sentinel kinds below through errors.Is,
// so callers can branch on the kind without caring about the concrete type:
//
//	if errors.Is(err, apperrors.ErrConflict) { ... }
package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrConflict              = errors.New("conflict")
	ErrNotFound              = errors.New("not found")
	ErrParse                 = errors.New("parse error")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrFatalIO               = errors.New("fatal i/o error")
	ErrInvalid               = errors.New("invalid input")
	ErrBusy                  = errors.New("busy")
)

// ConflictError reports a duplicate keyword, category or profile name.
type ConflictError struct {
	Entity string
	Key    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.Entity, e.Key)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError reports an operation on a missing profile, category or rule.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ParseError represents an unparsable CSV row. Row is the 1-based data row.
type ParseError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: failed to parse %s='%s': %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ClassifierError represents a failed or timed out fallback call.
type ClassifierError struct {
	Provider    string
	Description string
	Err         error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classification of '%s' using %s failed: %v", e.Description, e.Provider, e.Err)
}

func (e *ClassifierError) Unwrap() error { return e.Err }

func (e *ClassifierError) Is(target error) bool { return target == ErrClassifierUnavailable }

// FatalIOError aborts a batch. RowsProcessed counts the rows categorized
// before the failure.
type FatalIOError struct {
	Op            string
	RowsProcessed int
	Err           error
}

func (e *FatalIOError) Error() string {
	return fmt.Sprintf("%s failed after %d rows: %v", e.Op, e.RowsProcessed, e.Err)
}

func (e *FatalIOError) Unwrap() error { return e.Err }

func (e *FatalIOError) Is(target error) bool { return target == ErrFatalIO }

// ValidationError reports an argument that cannot be accepted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }

// BusyError reports that a profile already has a run queued or in flight.
type BusyError struct {
	Profile string
	JobID   string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("profile '%s' already has a run in progress (job %s)", e.Profile, e.JobID)
}

func (e *BusyError) Is(target error) bool { return target == ErrBusy }

// RowsProcessed extracts the processed-row count carried by a FatalIOError
// anywhere in err's chain.
func RowsProcessed(err error) (int, bool) {
	var fatal *FatalIOError
	if errors.As(err, &fatal) {
		return fatal.RowsProcessed, true
	}
	return 0, false
}
