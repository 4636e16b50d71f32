/*
Package tracking provides the time-entry tracking engine.

PURPOSE:
  Records when an employee starts and stops working on a task, keeps at
  most one open entry per employee, derives durations from timestamps, and
  aggregates recorded time into statistics.

KEY CONCEPTS IN THIS FILE (types.go):
  - TimeEntry: One work session (open while EndTime is nil)
  - EntryDetails: Denormalized employee/task/project display fields
  - Employee/Task/Project: Read-only directory records owned elsewhere
  - EntryPatch: Partial update applied by the store

INVARIANTS:
  1. EndTime, when set, is strictly after StartTime
  2. DurationMinutes is set if and only if EndTime is set
  3. At most one open entry exists per EmployeeID

INSTANTS:
  All instants are normalized to UTC with microsecond precision before they
  reach a store, so SQL and in-memory backends compare them identically.

SEE ALSO:
  - tracker.go: Operations exposed to the transport layer
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package tracking

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntryID string
type EmployeeID string
type TaskID string
type ProjectID string

// NewEntryID returns a fresh random entry identifier.
func NewEntryID() EntryID {
	return EntryID(uuid.NewString())
}

// =============================================================================
// TIME ENTRY
// =============================================================================

// TimeEntry is a single work session of an employee on a task.
type TimeEntry struct {
	ID              EntryID
	EmployeeID      EmployeeID
	TaskID          TaskID
	StartTime       time.Time
	EndTime         *time.Time
	DurationMinutes *int

	Details EntryDetails
}

// EntryDetails carries display fields joined from the directory.
type EntryDetails struct {
	EmployeeName  string
	EmployeeEmail string
	TaskTitle     string
	TaskStatus    string
	ProjectID     ProjectID
	ProjectName   string
	ProjectStatus string
}

// NoProjectName is shown for entries whose task has no project.
const NoProjectName = "N/A"

// IsOpen reports whether the entry is still in progress.
func (e TimeEntry) IsOpen() bool { return e.EndTime == nil }

// Minutes returns the recorded duration, or zero while open.
func (e TimeEntry) Minutes() int {
	if e.DurationMinutes == nil {
		return 0
	}
	return *e.DurationMinutes
}

// Clone returns a deep copy so callers can't alias stored pointers.
func (e TimeEntry) Clone() TimeEntry {
	c := e
	if e.EndTime != nil {
		t := *e.EndTime
		c.EndTime = &t
	}
	if e.DurationMinutes != nil {
		d := *e.DurationMinutes
		c.DurationMinutes = &d
	}
	return c
}

// EntryPatch is a partial update. Nil fields are left unchanged.
type EntryPatch struct {
	StartTime       *time.Time
	EndTime         *time.Time
	DurationMinutes *int
}

// IsEmpty reports whether the patch changes nothing.
func (p EntryPatch) IsEmpty() bool {
	return p.StartTime == nil && p.EndTime == nil && p.DurationMinutes == nil
}

// Apply returns a copy of e with the patch applied.
func (p EntryPatch) Apply(e TimeEntry) TimeEntry {
	out := e.Clone()
	if p.StartTime != nil {
		out.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		t := *p.EndTime
		out.EndTime = &t
	}
	if p.DurationMinutes != nil {
		d := *p.DurationMinutes
		out.DurationMinutes = &d
	}
	return out
}

// =============================================================================
// DIRECTORY RECORDS (read-only from this package)
// =============================================================================

// Employee is the subset of an employee record the tracker reads.
type Employee struct {
	ID    EmployeeID
	Name  string
	Email string
}

// Task is the subset of a task record the tracker reads.
type Task struct {
	ID        TaskID
	Title     string
	Status    string
	ProjectID ProjectID // empty when the task is not attached to a project
}

// Project is the subset of a project record the tracker reads.
type Project struct {
	ID     ProjectID
	Name   string
	Status string
}

// =============================================================================
// RESULTS
// =============================================================================

// StopResult is the outcome of stopping an employee's active session.
// Stopped is false, with a nil Entry, when nothing was open.
type StopResult struct {
	Stopped bool
	Message string
	Entry   *TimeEntry
}

const (
	MsgNothingToStop = "No active time entry found"
	MsgStopped       = "Time entry stopped successfully"
)

// =============================================================================
// INSTANTS
// =============================================================================

// Normalize converts t to the canonical stored form.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Clock supplies the current instant. Tests substitute a fixed clock.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }
