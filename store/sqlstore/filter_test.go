package sqlstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/warp/timetrack/store/sqlstore"
	"github.com/warp/timetrack/tracking"
)

func TestCompileFilter(t *testing.T) {
	from := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	emp := tracking.EmployeeID("E1")
	task := tracking.TaskID("T1")
	project := tracking.ProjectID("P1")
	yes, no := true, false

	tests := []struct {
		name      string
		filter    tracking.Filter
		wantWhere string
		wantArgs  []any
	}{
		{
			name: "empty",
		},
		{
			name:      "range",
			filter:    tracking.Filter{From: &from, To: &to},
			wantWhere: " WHERE te.start_time >= ? AND te.start_time < ?",
			wantArgs:  []any{"2024-03-04T00:00:00.000000Z", "2024-03-05T00:00:00.000000Z"},
		},
		{
			name:      "ids",
			filter:    tracking.Filter{EmployeeID: &emp, TaskID: &task, ProjectID: &project},
			wantWhere: " WHERE te.employee_id = ? AND te.task_id = ? AND t.project_id = ?",
			wantArgs:  []any{"E1", "T1", "P1"},
		},
		{
			name:      "active",
			filter:    tracking.Filter{Active: &yes},
			wantWhere: " WHERE te.end_time IS NULL",
		},
		{
			name:      "closed for employee",
			filter:    tracking.Filter{EmployeeID: &emp, Active: &no},
			wantWhere: " WHERE te.employee_id = ? AND te.end_time IS NOT NULL",
			wantArgs:  []any{"E1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := sqlstore.CompileFilter(tt.filter)

			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCompileFilter_ValuesNeverReachTheClause(t *testing.T) {
	evil := tracking.EmployeeID("E1'; DROP TABLE time_entries; --")

	where, args := sqlstore.CompileFilter(tracking.Filter{EmployeeID: &evil})

	assert.NotContains(t, where, "DROP")
	assert.Equal(t, []any{string(evil)}, args)
}
