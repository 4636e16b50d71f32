/*
handlers_test.go - HTTP tests for the time-tracking API

Tests for:
- Start/stop lifecycle and status codes per error kind
- Self-scoped routes and the identity header
- Filters, updates, deletes, stats
- Session monitor report
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timetrack/tracking"
	"github.com/warp/timetrack/tracking/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router  http.Handler
	clock   *time.Time
	tracker *tracking.Tracker
	monitor *SessionMonitor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerIn(t, time.UTC)
}

// newTestServerIn builds a server whose stats calendar is loc.
func newTestServerIn(t *testing.T, loc *time.Location) *testServer {
	t.Helper()
	ctx := context.Background()

	mem := store.NewMemory()
	require.NoError(t, mem.SaveEmployee(ctx, tracking.Employee{ID: "emp-1", Name: "Ada", Email: "ada@example.com"}))
	require.NoError(t, mem.SaveEmployee(ctx, tracking.Employee{ID: "emp-2", Name: "Grace"}))
	require.NoError(t, mem.SaveProject(ctx, tracking.Project{ID: "proj-1", Name: "Apollo"}))
	require.NoError(t, mem.SaveTask(ctx, tracking.Task{ID: "task-1", Title: "Design", ProjectID: "proj-1"}))
	require.NoError(t, mem.SaveTask(ctx, tracking.Task{ID: "task-2", Title: "Support"}))

	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tr := tracking.New(mem, tracking.Options{Clock: clock, Location: loc})

	monitor := NewSessionMonitor(tr, nil)
	monitor.Clock = clock
	monitor.Threshold = 8 * time.Hour

	h := NewHandler(tr, nil)
	return &testServer{
		router:  NewRouter(h, RouterOptions{Monitor: monitor}),
		clock:   &now,
		tracker: tr,
		monitor: monitor,
	}
}

func (s *testServer) advance(d time.Duration) { *s.clock = s.clock.Add(d) }

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) start(t *testing.T, employeeID, taskID string) TimeEntryDTO {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/entries", StartEntryRequest{EmployeeID: employeeID, TaskID: taskID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[TimeEntryDTO](t, rec)
}

// =============================================================================
// START / STOP
// =============================================================================

func TestStartEntry_ReturnsDenormalizedEntry(t *testing.T) {
	s := newTestServer(t)

	// WHEN: Starting an entry
	entry := s.start(t, "emp-1", "task-1")

	// THEN: The response is open and carries the joined names
	assert.True(t, entry.Active)
	assert.Nil(t, entry.EndTime)
	assert.Nil(t, entry.DurationMinutes)
	assert.Equal(t, "2024-03-04T09:00:00.000000Z", entry.StartTime)
	assert.Equal(t, "Ada", entry.Employee.Name)
	assert.Equal(t, "Design", entry.Task.Title)
	assert.Equal(t, "Apollo", entry.Project.Name)
}

func TestStartEntry_SecondStartConflicts(t *testing.T) {
	s := newTestServer(t)
	first := s.start(t, "emp-1", "task-1")

	rec := s.do(t, http.MethodPost, "/api/entries", StartEntryRequest{EmployeeID: "emp-1", TaskID: "task-2"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "conflict", resp.Kind)
	assert.Contains(t, resp.Error, first.ID)
}

func TestStartEntry_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
		field  string
	}{
		{"missing employee", StartEntryRequest{TaskID: "task-1"}, http.StatusBadRequest, "employee_id"},
		{"missing task", StartEntryRequest{EmployeeID: "emp-1"}, http.StatusBadRequest, "task_id"},
		{"bad start time", map[string]string{"employee_id": "emp-1", "task_id": "task-1", "start_time": "yesterday"}, http.StatusBadRequest, "start_time"},
		{"future start time", map[string]string{"employee_id": "emp-1", "task_id": "task-1", "start_time": "2024-03-04T10:00:00Z"}, http.StatusBadRequest, "start_time"},
		{"unknown employee", StartEntryRequest{EmployeeID: "ghost", TaskID: "task-1"}, http.StatusNotFound, ""},
		{"unknown task", StartEntryRequest{EmployeeID: "emp-1", TaskID: "ghost"}, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/entries", tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.field, decode[ErrorResponse](t, rec).Field)
		})
	}

	// Nothing was created by the failed attempts
	rec := s.do(t, http.MethodGet, "/api/entries", nil)
	assert.Empty(t, decode[[]TimeEntryDTO](t, rec))
}

func TestStartEntry_MalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/entries", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStopActive_RoundTrip(t *testing.T) {
	s := newTestServer(t)
	entry := s.start(t, "emp-1", "task-1")

	// WHEN: Stopping 90 minutes later
	s.advance(90 * time.Minute)
	rec := s.do(t, http.MethodPost, "/api/employees/emp-1/stop", nil)

	// THEN: The entry is closed with its duration
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[StopResultDTO](t, rec)
	assert.True(t, res.Stopped)
	assert.Equal(t, tracking.MsgStopped, res.Message)
	require.NotNil(t, res.Entry)
	assert.Equal(t, entry.ID, res.Entry.ID)
	require.NotNil(t, res.Entry.DurationMinutes)
	assert.Equal(t, 90, *res.Entry.DurationMinutes)

	// AND: Stopping again is a no-op, not an error
	rec = s.do(t, http.MethodPost, "/api/employees/emp-1/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[StopResultDTO](t, rec)
	assert.False(t, res.Stopped)
	assert.Equal(t, tracking.MsgNothingToStop, res.Message)
	assert.Nil(t, res.Entry)
}

func TestGetActiveEntry(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/employees/emp-1/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ActiveEntryResponse](t, rec).Active)

	entry := s.start(t, "emp-1", "task-2")

	rec = s.do(t, http.MethodGet, "/api/employees/emp-1/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := decode[ActiveEntryResponse](t, rec)
	assert.True(t, active.Active)
	require.NotNil(t, active.Entry)
	assert.Equal(t, entry.ID, active.Entry.ID)
	assert.Equal(t, tracking.NoProjectName, active.Entry.Project.Name)
}

// =============================================================================
// SELF-SCOPED ROUTES
// =============================================================================

func TestMeRoutes_UseIdentityHeader(t *testing.T) {
	s := newTestServer(t)

	// WHEN: Starting without the header
	rec := s.do(t, http.MethodPost, "/api/me/entries", map[string]string{"task_id": "task-1"})

	// THEN: The caller is unknown
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// WHEN: Starting, reading and stopping as emp-2
	rec = s.do(t, http.MethodPost, "/api/me/entries", map[string]string{"task_id": "task-1"}, EmployeeHeader, "emp-2")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "emp-2", decode[TimeEntryDTO](t, rec).EmployeeID)

	rec = s.do(t, http.MethodGet, "/api/me/active", nil, EmployeeHeader, "emp-2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[ActiveEntryResponse](t, rec).Active)

	s.advance(30 * time.Minute)
	rec = s.do(t, http.MethodPost, "/api/me/stop", nil, EmployeeHeader, "emp-2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[StopResultDTO](t, rec).Stopped)

	// THEN: emp-1 was never touched
	rec = s.do(t, http.MethodGet, "/api/employees/emp-1/active", nil)
	assert.False(t, decode[ActiveEntryResponse](t, rec).Active)
}

// =============================================================================
// UPDATE / DELETE / GET
// =============================================================================

func TestUpdateEntry_EndBeforeStartRejected(t *testing.T) {
	s := newTestServer(t)
	entry := s.start(t, "emp-1", "task-1")

	rec := s.do(t, http.MethodPatch, "/api/entries/"+entry.ID, map[string]string{"end_time": "2024-03-04T08:00:00Z"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unchanged
	rec = s.do(t, http.MethodGet, "/api/entries/"+entry.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[TimeEntryDTO](t, rec).Active)
}

func TestUpdateEntry_ClosesAndRecomputes(t *testing.T) {
	s := newTestServer(t)
	entry := s.start(t, "emp-1", "task-1")

	rec := s.do(t, http.MethodPatch, "/api/entries/"+entry.ID, map[string]string{"end_time": "2024-03-04T11:15:00Z"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[TimeEntryDTO](t, rec)
	assert.False(t, updated.Active)
	require.NotNil(t, updated.DurationMinutes)
	assert.Equal(t, 135, *updated.DurationMinutes)
}

func TestUpdateEntry_NegativeDurationRejected(t *testing.T) {
	s := newTestServer(t)
	entry := s.start(t, "emp-1", "task-1")

	rec := s.do(t, http.MethodPatch, "/api/entries/"+entry.ID, map[string]int{"duration_minutes": -5})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "duration_minutes", decode[ErrorResponse](t, rec).Field)
}

func TestUpdateEntry_Missing(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPatch, "/api/entries/nope", map[string]string{"end_time": "2024-03-04T11:15:00Z"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteEntry(t *testing.T) {
	s := newTestServer(t)
	entry := s.start(t, "emp-1", "task-1")

	rec := s.do(t, http.MethodDelete, "/api/entries/"+entry.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[DeleteResponse](t, rec).Deleted)

	rec = s.do(t, http.MethodDelete, "/api/entries/"+entry.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/entries/"+entry.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// LIST / STATS
// =============================================================================

func TestListEntries_Filters(t *testing.T) {
	s := newTestServer(t)

	s.start(t, "emp-1", "task-1")
	s.advance(60 * time.Minute)
	s.do(t, http.MethodPost, "/api/employees/emp-1/stop", nil)
	s.start(t, "emp-2", "task-2")

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?employee_id=emp-1", 1},
		{"?project_id=proj-1", 1},
		{"?is_active=true", 1},
		{"?is_active=false&employee_id=emp-2", 0},
		{"?start_date=2024-03-04&end_date=2024-03-04", 2},
		{"?start_date=2024-03-05", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, "/api/entries"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Len(t, decode[[]TimeEntryDTO](t, rec), tt.want)
		})
	}
}

func TestListEntries_DateBoundsUseTrackerTimezone(t *testing.T) {
	s := newTestServerIn(t, time.FixedZone("EET", 2*3600))

	// GIVEN: An entry at 23:30 UTC on March 3rd, which is 01:30 on March 4th in EET
	start := "2024-03-03T23:30:00Z"
	rec := s.do(t, http.MethodPost, "/api/entries", StartEntryRequest{EmployeeID: "emp-1", TaskID: "task-1", StartTime: &start})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/api/employees/emp-1/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// WHEN: Filtering on the EET calendar day
	query := "?start_date=2024-03-04&end_date=2024-03-04"
	list := decode[[]TimeEntryDTO](t, s.do(t, http.MethodGet, "/api/entries"+query, nil))
	stats := decode[StatsDTO](t, s.do(t, http.MethodGet, "/api/stats"+query+"&group_by=day", nil))

	// THEN: The list and the day bucket agree on the day
	assert.Len(t, list, 1)
	require.Len(t, stats.Entries, 1)
	assert.Equal(t, "2024-03-04", stats.Entries[0].ID)

	prev := decode[[]TimeEntryDTO](t, s.do(t, http.MethodGet, "/api/entries?end_date=2024-03-03", nil))
	assert.Empty(t, prev)
}

func TestListEntries_BadFilters(t *testing.T) {
	s := newTestServer(t)

	for _, q := range []string{
		"?is_active=maybe",
		"?start_date=03/04/2024",
		"?start_date=2024-03-05&end_date=2024-03-01",
	} {
		rec := s.do(t, http.MethodGet, "/api/entries"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: 90 minutes on Apollo and 30 minutes on a task without project
	s.start(t, "emp-1", "task-1")
	s.advance(90 * time.Minute)
	s.do(t, http.MethodPost, "/api/employees/emp-1/stop", nil)
	s.start(t, "emp-1", "task-2")
	s.advance(30 * time.Minute)
	s.do(t, http.MethodPost, "/api/employees/emp-1/stop", nil)

	// WHEN: Grouping by project
	rec := s.do(t, http.MethodGet, "/api/stats?group_by=project", nil)

	// THEN: Hours and percentages are exact
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decode[StatsDTO](t, rec)
	assert.Equal(t, "project", stats.Group)
	assert.Equal(t, 2.0, stats.TotalHours)
	require.Len(t, stats.Entries, 2)
	assert.Equal(t, "Apollo", stats.Entries[0].Name)
	assert.Equal(t, 1.5, stats.Entries[0].Hours)
	assert.Equal(t, 75.0, stats.Entries[0].Percentage)
	assert.Equal(t, tracking.NoProjectName, stats.Entries[1].Name)
	assert.Equal(t, 25.0, stats.Entries[1].Percentage)
}

func TestGetStats_UnknownGroup(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/stats?group_by=team", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "group_by", decode[ErrorResponse](t, rec).Field)
}

// =============================================================================
// MONITOR / OPS
// =============================================================================

func TestSessionMonitor_ReportsLongSessions(t *testing.T) {
	s := newTestServer(t)
	s.start(t, "emp-1", "task-1")
	s.advance(2 * time.Hour)
	s.start(t, "emp-2", "task-2")

	// WHEN: Checking 9 hours after the first start
	s.advance(7 * time.Hour)
	rec := s.do(t, http.MethodGet, "/api/monitor/sessions", nil)

	// THEN: Both are open, only emp-1 passed the 8h threshold
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[MonitorReport](t, rec)
	assert.Equal(t, 2, report.OpenSessions)
	require.Len(t, report.LongSessions, 1)
	assert.Equal(t, "emp-1", report.LongSessions[0].EmployeeID)
	assert.Equal(t, 9.0, report.LongSessions[0].OpenHours)

	// AND: The monitor never closes anything
	active, err := s.tracker.GetActiveEntry(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.NotNil(t, active)
}

func TestSessionMonitor_StartStop(t *testing.T) {
	s := newTestServer(t)
	s.monitor.CheckInterval = time.Hour

	s.monitor.Start()
	s.monitor.Stop()

	// The immediate check ran before Stop returned
	assert.NotNil(t, s.monitor.LastReport())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	s.start(t, "emp-1", "task-1")

	rec := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "timetrack_http_requests_total")
	assert.Contains(t, rec.Body.String(), "timetrack_tracker_commands_total")
}
