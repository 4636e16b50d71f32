package sqlstore

import (
	"strings"

	"github.com/warp/timetrack/tracking"
)

// CompileFilter turns a filter into a WHERE clause and its arguments. Each
// present field contributes exactly one AND-ed predicate with a placeholder;
// column names are fixed, never taken from input. An empty filter yields "".
func CompileFilter(f tracking.Filter) (string, []any) {
	var preds []string
	var args []any

	if f.From != nil {
		preds = append(preds, "te.start_time >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		preds = append(preds, "te.start_time < ?")
		args = append(args, formatTime(*f.To))
	}
	if f.EmployeeID != nil {
		preds = append(preds, "te.employee_id = ?")
		args = append(args, string(*f.EmployeeID))
	}
	if f.TaskID != nil {
		preds = append(preds, "te.task_id = ?")
		args = append(args, string(*f.TaskID))
	}
	if f.ProjectID != nil {
		preds = append(preds, "t.project_id = ?")
		args = append(args, string(*f.ProjectID))
	}
	if f.Active != nil {
		if *f.Active {
			preds = append(preds, "te.end_time IS NULL")
		} else {
			preds = append(preds, "te.end_time IS NOT NULL")
		}
	}

	if len(preds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}
