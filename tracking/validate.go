/*
validate.go - Referential and range checks before a write

PURPOSE:
  Rejects a write before it reaches the Store when it references a missing
  employee/task/entry or carries an inconsistent time range.

TRANSACTIONS:
  Every check here runs with the tx-bound Store passed into the command by
  the Executor, so a concurrent delete of the employee or task cannot slip
  between validation and insert. Foreign keys in SQL backends remain the
  authoritative backstop (surfaced as ErrMissingReference).

UPDATE RULES:
  - An empty patch is rejected
  - The merged entry must satisfy EndTime > StartTime
  - An explicit DurationMinutes overrides the computed value; it must be >= 0
    and the entry must end up closed
  - Otherwise, when a timestamp changes on a closed entry, the duration is
    recomputed from the merged timestamps
*/
package tracking

import (
	"context"
	"strings"
	"time"
)

// StartRequest is the input to StartEntry.
type StartRequest struct {
	EmployeeID EmployeeID
	TaskID     TaskID
	StartTime  *time.Time // nil = now
}

func validateStartInput(req StartRequest) error {
	if strings.TrimSpace(string(req.EmployeeID)) == "" {
		return &InvalidInputError{Field: "employee_id", Reason: "is required"}
	}
	if strings.TrimSpace(string(req.TaskID)) == "" {
		return &InvalidInputError{Field: "task_id", Reason: "is required"}
	}
	return nil
}

// validateReferences checks that the employee and task exist.
func validateReferences(ctx context.Context, dir Directory, employeeID EmployeeID, taskID TaskID) error {
	emp, err := dir.GetEmployee(ctx, employeeID)
	if err != nil {
		return err
	}
	if emp == nil {
		return &NotFoundError{Resource: ResourceEmployee, ID: string(employeeID)}
	}

	task, err := dir.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return &NotFoundError{Resource: ResourceTask, ID: string(taskID)}
	}
	return nil
}

// loadTarget returns the entry an update or delete is aimed at.
func loadTarget(ctx context.Context, s Store, id EntryID) (*TimeEntry, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, &InvalidInputError{Field: "id", Reason: "is required"}
	}
	return s.Get(ctx, id)
}

// resolvePatch validates p against the stored entry and fills in the
// recomputed duration when timestamps change.
func resolvePatch(existing TimeEntry, p EntryPatch) (EntryPatch, error) {
	if p.IsEmpty() {
		return p, &InvalidInputError{Reason: "no fields to update"}
	}

	out := EntryPatch{}
	if p.StartTime != nil {
		t := Normalize(*p.StartTime)
		out.StartTime = &t
	}
	if p.EndTime != nil {
		t := Normalize(*p.EndTime)
		out.EndTime = &t
	}
	if p.DurationMinutes != nil {
		if *p.DurationMinutes < 0 {
			return p, &InvalidInputError{Field: "duration_minutes", Reason: "must not be negative"}
		}
		d := *p.DurationMinutes
		out.DurationMinutes = &d
	}

	merged := out.Apply(existing)
	if merged.EndTime != nil && !merged.EndTime.After(merged.StartTime) {
		return p, &InvalidInputError{Field: "end_time", Reason: "must be after start_time", Err: ErrInvalidRange}
	}
	if merged.EndTime == nil && out.DurationMinutes != nil {
		return p, &InvalidInputError{Field: "duration_minutes", Reason: "cannot be set on an open entry"}
	}

	timestampsChanged := out.StartTime != nil || out.EndTime != nil
	if out.DurationMinutes == nil && timestampsChanged && merged.EndTime != nil {
		minutes, err := ComputeMinutes(merged.StartTime, *merged.EndTime)
		if err != nil {
			return p, &InvalidInputError{Field: "end_time", Reason: "must be after start_time", Err: err}
		}
		out.DurationMinutes = &minutes
	}
	return out, nil
}
