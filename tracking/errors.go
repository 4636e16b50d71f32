/*
errors.go - Error taxonomy for the tracking engine

PURPOSE:
  Callers branch on the KIND of failure, never on message text. Every error
  returned by a Tracker operation maps to exactly one Kind.

ERROR KINDS:
  InvalidInput: Malformed or inconsistent request data (bad range, unknown groupBy)
  NotFound:     Referenced or targeted entity is absent
  Conflict:     Invariant violation (second open entry for an employee)
  Internal:     Storage or transport failure

USAGE:
  entry, err := tracker.StartEntry(ctx, req)
  switch tracking.KindOf(err) {
  case tracking.KindConflict:
      // employee already has an open entry
  }

SEE ALSO:
  - executor.go: Wraps unclassified failures as InternalError
  - api/handlers.go: Maps kinds to HTTP status codes
*/
package tracking

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")

	// ErrInvalidRange is returned by ComputeMinutes when end is before start.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrOpenEntryExists is returned by a store when an insert or update would
	// leave two open entries for the same employee.
	ErrOpenEntryExists = errors.New("employee already has an open time entry")

	// ErrMultipleOpenEntries is returned when more than one open entry is
	// found for an employee.
	ErrMultipleOpenEntries = errors.New("multiple open time entries for employee")

	// ErrMissingReference is returned by a store when a foreign key check fails.
	ErrMissingReference = errors.New("referenced record does not exist")
)

// =============================================================================
// KINDS
// =============================================================================

type Kind int

const (
	KindNone Kind = iota
	KindInvalidInput
	KindNotFound
	KindConflict
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// KindOf classifies err. Unrecognized errors are Internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInternal):
		return KindInternal
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidRange):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrMissingReference):
		return KindNotFound
	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrOpenEntryExists),
		errors.Is(err, ErrMultipleOpenEntries):
		return KindConflict
	default:
		return KindInternal
	}
}

// IsClientError returns true if the caller can fix the request.
func IsClientError(err error) bool {
	k := KindOf(err)
	return k == KindInvalidInput || k == KindNotFound || k == KindConflict
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError names the offending field.
type InvalidInputError struct {
	Field  string
	Reason string
	Err    error // optional cause, e.g. ErrInvalidRange
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidInput, e.Err}
	}
	return []error{ErrInvalidInput}
}

// Resource names what a NotFoundError was looking for.
type Resource string

const (
	ResourceEntry    Resource = "entry"
	ResourceEmployee Resource = "employee"
	ResourceTask     Resource = "task"
)

// NotFoundError reports a missing entry, employee, or task.
type NotFoundError struct {
	Resource Resource
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports an active-session invariant violation.
type ConflictError struct {
	EmployeeID    EmployeeID
	ActiveEntryID EntryID // may be empty when the store only reports the violation
	Err           error
}

func (e *ConflictError) Error() string {
	msg := "employee already has an open time entry"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.ActiveEntryID != "" {
		return fmt.Sprintf("%s: %s (entry: %s)", msg, e.EmployeeID, e.ActiveEntryID)
	}
	return fmt.Sprintf("%s: %s", msg, e.EmployeeID)
}

func (e *ConflictError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConflict, e.Err}
	}
	return []error{ErrConflict}
}

// InternalError wraps a storage failure with the attempted operation.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() []error { return []error{ErrInternal, e.Err} }

// classify leaves taxonomy errors alone and wraps everything else as Internal.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var internal *InternalError
	if errors.As(err, &internal) {
		return err
	}
	if IsClientError(err) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}
