/*
query.go - Structured filters for listing and aggregating entries

PURPOSE:
  A Filter is a set of optional predicates combined with AND. SQL stores
  compile each present field into exactly one parameterized predicate; the
  memory store evaluates Matches. There is no string building from user input.

FIELDS:
  From:       StartTime >= From (inclusive)
  To:         StartTime <  To   (exclusive)
  EmployeeID: entry belongs to the employee
  TaskID:     entry is on the task
  ProjectID:  entry's task belongs to the project
  Active:     true = open entries only, false = closed entries only

ORDER:
  Most recent StartTime first; ties broken by ID descending so the order is
  stable across backends.

DATE-ONLY BOUNDS:
  ParseBound accepts "2024-03-01" as well as RFC 3339. Dates are read in the
  tracker's stats timezone so a filtered day is the same day group_by=day
  reports. A date-only upper bound covers the whole day ("everything up to
  and including March 31").
*/
package tracking

import (
	"sort"
	"strings"
	"time"
)

// Filter selects time entries. The zero value matches everything.
type Filter struct {
	From       *time.Time
	To         *time.Time
	EmployeeID *EmployeeID
	TaskID     *TaskID
	ProjectID  *ProjectID
	Active     *bool
}

// Validate rejects an empty or inverted date range.
func (f Filter) Validate() error {
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return &InvalidInputError{Field: "end_date", Reason: "must be after start_date", Err: ErrInvalidRange}
	}
	return nil
}

// Normalized returns a copy with bounds in canonical form.
func (f Filter) Normalized() Filter {
	out := f
	if f.From != nil {
		t := Normalize(*f.From)
		out.From = &t
	}
	if f.To != nil {
		t := Normalize(*f.To)
		out.To = &t
	}
	return out
}

// Matches evaluates the filter against an entry with its details loaded.
func (f Filter) Matches(e TimeEntry) bool {
	if f.From != nil && e.StartTime.Before(*f.From) {
		return false
	}
	if f.To != nil && !e.StartTime.Before(*f.To) {
		return false
	}
	if f.EmployeeID != nil && e.EmployeeID != *f.EmployeeID {
		return false
	}
	if f.TaskID != nil && e.TaskID != *f.TaskID {
		return false
	}
	if f.ProjectID != nil && e.Details.ProjectID != *f.ProjectID {
		return false
	}
	if f.Active != nil && e.IsOpen() != *f.Active {
		return false
	}
	return true
}

// SortRecentFirst orders entries the way every listing is returned.
func SortRecentFirst(entries []TimeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.After(b.StartTime)
		}
		return a.ID > b.ID
	})
}

// =============================================================================
// PARSING
// =============================================================================

const dateLayout = "2006-01-02"

// ParseInstant parses an RFC 3339 instant or a YYYY-MM-DD date (UTC midnight).
func ParseInstant(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &InvalidInputError{Field: field, Reason: "is required"}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Normalize(t), nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, &InvalidInputError{
		Field:  field,
		Reason: "invalid date format, use ISO 8601 (e.g. 2024-03-31 or 2024-03-31T09:00:00Z)",
	}
}

// ParseBound parses a filter bound. A date-only bound is midnight in loc (nil
// means UTC), the same calendar the stats buckets use; as an upper bound it
// moves to the start of the next day so the whole day is included.
func ParseBound(field, s string, upper bool, loc *time.Location) (time.Time, error) {
	if !isDateOnly(s) {
		return ParseInstant(field, s)
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return t, &InvalidInputError{Field: field, Reason: "invalid date format"}
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return Normalize(t), nil
}

func isDateOnly(s string) bool {
	_, err := time.Parse(dateLayout, strings.TrimSpace(s))
	return err == nil
}
