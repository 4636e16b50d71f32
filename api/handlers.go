/*
handlers.go - HTTP API handlers for time tracking

PURPOSE:
  Exposes the tracking engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to tracking.Tracker.

ENDPOINTS:
  Entries:
    GET    /api/entries                    List entries (filters below)
    POST   /api/entries                    Start an entry
    GET    /api/entries/{id}               Get one entry
    PATCH  /api/entries/{id}               Update start/end/duration
    DELETE /api/entries/{id}               Delete an entry

  Employees:
    GET    /api/employees/{id}/active      Open entry, if any
    POST   /api/employees/{id}/stop        Stop the open entry

  Self (X-Employee-ID):
    POST   /api/me/entries                 Start an entry for the caller
    GET    /api/me/active                  Caller's open entry
    POST   /api/me/stop                    Stop the caller's open entry

  Stats:
    GET    /api/stats?group_by=...         Aggregated hours

FILTER PARAMETERS:
  start_date, end_date  RFC 3339 or YYYY-MM-DD; date-only end_date covers the day
  employee_id, task_id, project_id
  is_active             true | false

ERROR HANDLING:
  Errors are returned as JSON with a status derived from tracking.KindOf:
  - 400: InvalidInput
  - 404: NotFound
  - 409: Conflict
  - 500: Internal (details are logged, not returned)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/warp/timetrack/tracking"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Tracker *tracking.Tracker

	validate *validator.Validate
	log      *slog.Logger

	// Identical concurrent stats queries share one aggregation.
	stats singleflight.Group
}

// NewHandler creates a new handler around the tracker.
func NewHandler(tr *tracking.Tracker, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{Tracker: tr, validate: v, log: log}
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListEntries returns entries matching the query filters, most recent first.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r, h.Tracker.Location())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entries, err := h.Tracker.ListEntries(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTOs(entries))
}

// StartEntry opens a new time entry.
func (h *Handler) StartEntry(w http.ResponseWriter, r *http.Request) {
	var req StartEntryRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.start(w, r, req)
}

// StartOwnEntry opens a time entry for the calling employee.
func (h *Handler) StartOwnEntry(w http.ResponseWriter, r *http.Request) {
	caller, ok := EmployeeFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}

	var req StartEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, &tracking.InvalidInputError{Reason: "invalid request body", Err: err})
		return
	}
	req.EmployeeID = string(caller)
	if err := h.check(req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.start(w, r, req)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request, req StartEntryRequest) {
	sr, err := req.toStartRequest()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entry, err := h.Tracker.StartEntry(r.Context(), sr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimeEntryDTO(entry))
}

// GetEntry returns a single entry.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := tracking.EntryID(chi.URLParam(r, "id"))

	entry, err := h.Tracker.GetEntry(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTO(entry))
}

// UpdateEntry applies a partial update.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := tracking.EntryID(chi.URLParam(r, "id"))

	var req UpdateEntryRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	entry, err := h.Tracker.UpdateEntry(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeEntryDTO(entry))
}

// DeleteEntry removes an entry.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := tracking.EntryID(chi.URLParam(r, "id"))

	deleted, err := h.Tracker.DeleteEntry(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

// =============================================================================
// ACTIVE SESSION HANDLERS
// =============================================================================

// GetActiveEntry returns the employee's open entry, if any.
func (h *Handler) GetActiveEntry(w http.ResponseWriter, r *http.Request) {
	h.active(w, r, tracking.EmployeeID(chi.URLParam(r, "id")))
}

// GetOwnActiveEntry returns the caller's open entry, if any.
func (h *Handler) GetOwnActiveEntry(w http.ResponseWriter, r *http.Request) {
	caller, ok := EmployeeFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}
	h.active(w, r, caller)
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request, employeeID tracking.EmployeeID) {
	entry, err := h.Tracker.GetActiveEntry(r.Context(), employeeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActiveEntryResponse{Active: entry != nil, Entry: toTimeEntryDTO(entry)})
}

// StopActive closes the employee's open entry. Having nothing to stop is
// not an error.
func (h *Handler) StopActive(w http.ResponseWriter, r *http.Request) {
	h.stop(w, r, tracking.EmployeeID(chi.URLParam(r, "id")))
}

// StopOwnActive closes the caller's open entry.
func (h *Handler) StopOwnActive(w http.ResponseWriter, r *http.Request) {
	caller, ok := EmployeeFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}
	h.stop(w, r, caller)
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request, employeeID tracking.EmployeeID) {
	res, err := h.Tracker.StopActive(r.Context(), employeeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStopResultDTO(res))
}

// =============================================================================
// STATS HANDLERS
// =============================================================================

// GetStats returns hours aggregated by group_by.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r, h.Tracker.Location())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	groupBy := r.URL.Query().Get("group_by")

	// Query().Encode sorts keys, so equivalent URLs share a key.
	key := r.URL.Query().Encode()
	v, err, _ := h.stats.Do(key, func() (any, error) {
		// Detached so one caller's disconnect doesn't fail the others.
		ctx := context.WithoutCancel(r.Context())
		return h.Tracker.GetStats(ctx, f, groupBy)
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewStatsDTO(v.(*tracking.Stats)))
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &tracking.InvalidInputError{Reason: "invalid request body", Err: err}
	}
	return h.check(dst)
}

func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &tracking.InvalidInputError{Field: fe.Field(), Reason: reasonFor(fe)}
	}
	return &tracking.InvalidInputError{Reason: err.Error()}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func parseFilter(r *http.Request, loc *time.Location) (tracking.Filter, error) {
	q := r.URL.Query()
	var f tracking.Filter

	if s := q.Get("start_date"); s != "" {
		t, err := tracking.ParseBound("start_date", s, false, loc)
		if err != nil {
			return f, err
		}
		f.From = &t
	}
	if s := q.Get("end_date"); s != "" {
		t, err := tracking.ParseBound("end_date", s, true, loc)
		if err != nil {
			return f, err
		}
		f.To = &t
	}
	if s := q.Get("employee_id"); s != "" {
		id := tracking.EmployeeID(s)
		f.EmployeeID = &id
	}
	if s := q.Get("task_id"); s != "" {
		id := tracking.TaskID(s)
		f.TaskID = &id
	}
	if s := q.Get("project_id"); s != "" {
		id := tracking.ProjectID(s)
		f.ProjectID = &id
	}
	if s := q.Get("is_active"); s != "" {
		active, err := strconv.ParseBool(s)
		if err != nil {
			return f, &tracking.InvalidInputError{Field: "is_active", Reason: "must be true or false"}
		}
		f.Active = &active
	}
	return f, f.Validate()
}

// =============================================================================
// RESPONSES
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps err's kind to a status code.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := tracking.KindOf(err)
	resp := ErrorResponse{Error: err.Error(), Kind: kind.String()}

	var invalid *tracking.InvalidInputError
	if errors.As(err, &invalid) {
		resp.Field = invalid.Field
		if invalid.Err != nil {
			resp.Details = invalid.Err.Error()
		}
	}

	status := http.StatusInternalServerError
	switch kind {
	case tracking.KindInvalidInput:
		status = http.StatusBadRequest
	case tracking.KindNotFound:
		status = http.StatusNotFound
	case tracking.KindConflict:
		status = http.StatusConflict
	default:
		h.log.ErrorContext(r.Context(), "request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		resp = ErrorResponse{Error: "internal server error", Kind: tracking.KindInternal.String()}
	}
	writeJSON(w, status, resp)
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error: "missing " + EmployeeHeader + " header",
		Kind:  "unauthenticated",
	})
}
