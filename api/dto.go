/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the time-tracking API, kept apart from tracking types so
  the wire contract can evolve on its own.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Response wrappers

INSTANTS:
  Rendered as RFC 3339 in UTC with microsecond precision. Requests accept
  RFC 3339 or YYYY-MM-DD.

VALIDATION:
  Struct tags are checked with go-playground/validator before any tracker
  call; format checks for instants happen during conversion.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/timetrack/tracking"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// StartEntryRequest is the body of POST /api/entries. On /api/me/entries the
// employee comes from the caller's identity instead.
type StartEntryRequest struct {
	EmployeeID string  `json:"employee_id" validate:"required,max=64"`
	TaskID     string  `json:"task_id" validate:"required,max=64"`
	StartTime  *string `json:"start_time,omitempty"`
}

// UpdateEntryRequest is the body of PATCH /api/entries/{id}.
type UpdateEntryRequest struct {
	StartTime       *string `json:"start_time,omitempty"`
	EndTime         *string `json:"end_time,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty" validate:"omitempty,min=0"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// TimeEntryDTO represents a time entry with its display fields.
type TimeEntryDTO struct {
	ID              string  `json:"id"`
	EmployeeID      string  `json:"employee_id"`
	TaskID          string  `json:"task_id"`
	StartTime       string  `json:"start_time"`
	EndTime         *string `json:"end_time"`
	DurationMinutes *int    `json:"duration_minutes"`
	Active          bool    `json:"active"`

	Employee EmployeeRefDTO `json:"employee"`
	Task     TaskRefDTO     `json:"task"`
	Project  ProjectRefDTO  `json:"project"`
}

type EmployeeRefDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type TaskRefDTO struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
}

type ProjectRefDTO struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// ActiveEntryResponse wraps GET .../active; Entry is null when idle.
type ActiveEntryResponse struct {
	Active bool          `json:"active"`
	Entry  *TimeEntryDTO `json:"entry"`
}

// StopResultDTO is returned by the stop endpoints.
type StopResultDTO struct {
	Stopped bool          `json:"stopped"`
	Message string        `json:"message"`
	Entry   *TimeEntryDTO `json:"entry"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// StatsDTO is the aggregated view.
type StatsDTO struct {
	Group      string          `json:"group"`
	TotalHours float64         `json:"total_hours"`
	Entries    []StatsEntryDTO `json:"entries"`
}

type StatsEntryDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Minutes    int64   `json:"minutes"`
	Hours      float64 `json:"hours"`
	Percentage float64 `json:"percentage"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

const instantLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

func toTimeEntryDTO(e *tracking.TimeEntry) *TimeEntryDTO {
	if e == nil {
		return nil
	}
	dto := &TimeEntryDTO{
		ID:              string(e.ID),
		EmployeeID:      string(e.EmployeeID),
		TaskID:          string(e.TaskID),
		StartTime:       formatInstant(e.StartTime),
		DurationMinutes: e.DurationMinutes,
		Active:          e.IsOpen(),
		Employee: EmployeeRefDTO{
			ID:    string(e.EmployeeID),
			Name:  e.Details.EmployeeName,
			Email: e.Details.EmployeeEmail,
		},
		Task: TaskRefDTO{
			ID:     string(e.TaskID),
			Title:  e.Details.TaskTitle,
			Status: e.Details.TaskStatus,
		},
		Project: ProjectRefDTO{
			ID:     string(e.Details.ProjectID),
			Name:   e.Details.ProjectName,
			Status: e.Details.ProjectStatus,
		},
	}
	if e.EndTime != nil {
		s := formatInstant(*e.EndTime)
		dto.EndTime = &s
	}
	return dto
}

func toTimeEntryDTOs(entries []tracking.TimeEntry) []TimeEntryDTO {
	out := make([]TimeEntryDTO, 0, len(entries))
	for i := range entries {
		out = append(out, *toTimeEntryDTO(&entries[i]))
	}
	return out
}

func toStopResultDTO(res tracking.StopResult) StopResultDTO {
	return StopResultDTO{
		Stopped: res.Stopped,
		Message: res.Message,
		Entry:   toTimeEntryDTO(res.Entry),
	}
}

// NewStatsDTO converts aggregated stats to their wire shape. The CLI's JSON
// output uses it too.
func NewStatsDTO(s *tracking.Stats) StatsDTO {
	dto := StatsDTO{
		Group:      string(s.Group),
		TotalHours: s.TotalHours.InexactFloat64(),
		Entries:    make([]StatsEntryDTO, 0, len(s.Entries)),
	}
	for _, e := range s.Entries {
		dto.Entries = append(dto.Entries, StatsEntryDTO{
			ID:         e.ID,
			Name:       e.Name,
			Minutes:    e.Minutes,
			Hours:      e.Hours.InexactFloat64(),
			Percentage: e.Percentage.InexactFloat64(),
		})
	}
	return dto
}

// toPatch converts an update body. Instants are parsed here so format errors
// name the offending field.
func (req UpdateEntryRequest) toPatch() (tracking.EntryPatch, error) {
	var p tracking.EntryPatch
	if req.StartTime != nil {
		t, err := tracking.ParseInstant("start_time", *req.StartTime)
		if err != nil {
			return p, err
		}
		p.StartTime = &t
	}
	if req.EndTime != nil {
		t, err := tracking.ParseInstant("end_time", *req.EndTime)
		if err != nil {
			return p, err
		}
		p.EndTime = &t
	}
	p.DurationMinutes = req.DurationMinutes
	return p, nil
}

func (req StartEntryRequest) toStartRequest() (tracking.StartRequest, error) {
	out := tracking.StartRequest{
		EmployeeID: tracking.EmployeeID(req.EmployeeID),
		TaskID:     tracking.TaskID(req.TaskID),
	}
	if req.StartTime != nil {
		t, err := tracking.ParseInstant("start_time", *req.StartTime)
		if err != nil {
			return out, err
		}
		out.StartTime = &t
	}
	return out, nil
}
