/*
tracker.go - Operations exposed to the transport layer

OPERATIONS:
  StartEntry(req)          -> TimeEntry           InvalidInput | NotFound | Conflict
  StopActive(employee)     -> StopResult          never fails for "nothing to stop"
  UpdateEntry(id, patch)   -> TimeEntry           InvalidInput | NotFound
  DeleteEntry(id)          -> bool                NotFound
  ListEntries(filter)      -> []TimeEntry
  GetEntry(id)             -> TimeEntry           NotFound
  GetActiveEntry(employee) -> TimeEntry or nil
  GetStats(filter, group)  -> Stats               InvalidInput for unknown group

  Every mutating operation runs through the Executor; reads go straight to
  the Store. Storage failures surface as *InternalError.

EXAMPLE:
  tr := tracking.New(store, tracking.Options{Logger: log})
  entry, err := tr.StartEntry(ctx, tracking.StartRequest{EmployeeID: "e1", TaskID: "t1"})
  ...
  res, err := tr.StopActive(ctx, "e1")
*/
package tracking

import (
	"context"
	"log/slog"
	"time"
)

// Options configures a Tracker.
type Options struct {
	Clock          Clock          // default: SystemClock
	Logger         *slog.Logger   // default: slog.Default()
	CommandTimeout time.Duration  // 0 = no deadline beyond the caller's
	Location       *time.Location // calendar for day/week/month stats; default UTC
}

// Tracker is the time-entry tracking service.
type Tracker struct {
	exec  *Executor
	guard *Guard
	clock Clock
	loc   *time.Location
	log   *slog.Logger
}

// New creates a Tracker over store.
func New(store TxStore, opts Options) *Tracker {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Tracker{
		exec:  NewExecutor(store, opts.Logger, opts.CommandTimeout),
		guard: NewGuard(),
		clock: opts.Clock,
		loc:   opts.Location,
		log:   opts.Logger,
	}
}

// Location returns the calendar used for time-dimension stats.
func (t *Tracker) Location() *time.Location { return t.loc }

// =============================================================================
// COMMANDS
// =============================================================================

// StartEntry opens a new session for the employee on the task.
func (t *Tracker) StartEntry(ctx context.Context, req StartRequest) (*TimeEntry, error) {
	if err := validateStartInput(req); err != nil {
		observe("start", err, time.Now())
		return nil, err
	}

	now := Normalize(t.clock())
	start := now
	if req.StartTime != nil {
		start = Normalize(*req.StartTime)
	}
	// A later stop closes at the clock; it could never end a future session.
	if start.After(now) {
		err := &InvalidInputError{Field: "start_time", Reason: "must not be in the future"}
		observe("start", err, time.Now())
		return nil, err
	}
	entry := TimeEntry{
		ID:         NewEntryID(),
		EmployeeID: req.EmployeeID,
		TaskID:     req.TaskID,
		StartTime:  start,
	}

	unlock := t.guard.Lock(req.EmployeeID)
	defer unlock()

	attrs := []any{slog.String("employee_id", string(req.EmployeeID)), slog.String("task_id", string(req.TaskID))}
	created, err := execute(ctx, t.exec, "start", attrs, func(ctx context.Context, s Store) (*TimeEntry, error) {
		if err := validateReferences(ctx, s, entry.EmployeeID, entry.TaskID); err != nil {
			return nil, err
		}
		if err := t.guard.Open(ctx, s, entry); err != nil {
			return nil, err
		}
		return s.Get(ctx, entry.ID)
	})
	if err != nil {
		return nil, err
	}

	sessionsStarted.Inc()
	t.log.InfoContext(ctx, "time entry started",
		slog.String("entry_id", string(created.ID)),
		slog.String("employee_id", string(created.EmployeeID)),
		slog.String("task_id", string(created.TaskID)))
	return created, nil
}

// StopActive closes the employee's open session, if any.
func (t *Tracker) StopActive(ctx context.Context, employeeID EmployeeID) (StopResult, error) {
	if employeeID == "" {
		err := &InvalidInputError{Field: "employee_id", Reason: "is required"}
		observe("stop", err, time.Now())
		return StopResult{}, err
	}

	unlock := t.guard.Lock(employeeID)
	defer unlock()

	attrs := []any{slog.String("employee_id", string(employeeID))}
	res, err := execute(ctx, t.exec, "stop", attrs, func(ctx context.Context, s Store) (StopResult, error) {
		closed, err := t.guard.Close(ctx, s, employeeID, t.clock())
		if err != nil {
			return StopResult{}, err
		}
		if closed == nil {
			return StopResult{Stopped: false, Message: MsgNothingToStop}, nil
		}
		snapshot, err := s.Get(ctx, closed.ID)
		if err != nil {
			return StopResult{}, err
		}
		return StopResult{Stopped: true, Message: MsgStopped, Entry: snapshot}, nil
	})
	if err != nil {
		return StopResult{}, err
	}

	if res.Stopped {
		minutesRecorded.Add(float64(res.Entry.Minutes()))
		t.log.InfoContext(ctx, "time entry stopped",
			slog.String("entry_id", string(res.Entry.ID)),
			slog.String("employee_id", string(employeeID)),
			slog.Int("duration_minutes", res.Entry.Minutes()))
	}
	return res, nil
}

// UpdateEntry applies a partial update to an existing entry.
func (t *Tracker) UpdateEntry(ctx context.Context, id EntryID, patch EntryPatch) (*TimeEntry, error) {
	attrs := []any{slog.String("entry_id", string(id))}
	return execute(ctx, t.exec, "update", attrs, func(ctx context.Context, s Store) (*TimeEntry, error) {
		existing, err := loadTarget(ctx, s, id)
		if err != nil {
			return nil, err
		}
		resolved, err := resolvePatch(*existing, patch)
		if err != nil {
			return nil, err
		}
		if err := s.Update(ctx, id, resolved); err != nil {
			return nil, err
		}
		return s.Get(ctx, id)
	})
}

// DeleteEntry removes an entry.
func (t *Tracker) DeleteEntry(ctx context.Context, id EntryID) (bool, error) {
	attrs := []any{slog.String("entry_id", string(id))}
	return execute(ctx, t.exec, "delete", attrs, func(ctx context.Context, s Store) (bool, error) {
		if _, err := loadTarget(ctx, s, id); err != nil {
			return false, err
		}
		deleted, err := s.Delete(ctx, id)
		if err != nil {
			return false, err
		}
		if !deleted {
			return false, &NotFoundError{Resource: ResourceEntry, ID: string(id)}
		}
		return true, nil
	})
}

// =============================================================================
// QUERIES
// =============================================================================

// ListEntries returns matching entries, most recent first.
func (t *Tracker) ListEntries(ctx context.Context, f Filter) ([]TimeEntry, error) {
	if err := f.Validate(); err != nil {
		observe("list", err, time.Now())
		return nil, err
	}
	f = f.Normalized()
	return read(ctx, t.exec, "list", nil, func(ctx context.Context, s Store) ([]TimeEntry, error) {
		entries, err := s.Query(ctx, f)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []TimeEntry{}
		}
		return entries, nil
	})
}

// GetEntry returns a single entry.
func (t *Tracker) GetEntry(ctx context.Context, id EntryID) (*TimeEntry, error) {
	attrs := []any{slog.String("entry_id", string(id))}
	return read(ctx, t.exec, "get", attrs, func(ctx context.Context, s Store) (*TimeEntry, error) {
		return loadTarget(ctx, s, id)
	})
}

// GetActiveEntry returns the employee's open entry, or nil.
func (t *Tracker) GetActiveEntry(ctx context.Context, employeeID EmployeeID) (*TimeEntry, error) {
	if employeeID == "" {
		err := &InvalidInputError{Field: "employee_id", Reason: "is required"}
		observe("active", err, time.Now())
		return nil, err
	}
	attrs := []any{slog.String("employee_id", string(employeeID))}
	return read(ctx, t.exec, "active", attrs, func(ctx context.Context, s Store) (*TimeEntry, error) {
		return t.guard.Active(ctx, s, employeeID)
	})
}

// GetStats aggregates closed entries matching f by the named dimension.
// The dimension is checked before any query runs.
func (t *Tracker) GetStats(ctx context.Context, f Filter, groupBy string) (*Stats, error) {
	by, err := ParseGroupBy(groupBy)
	if err == nil {
		err = f.Validate()
	}
	if err != nil {
		observe("stats", err, time.Now())
		return nil, err
	}
	f = f.Normalized()

	attrs := []any{slog.String("group_by", string(by))}
	return read(ctx, t.exec, "stats", attrs, func(ctx context.Context, s Store) (*Stats, error) {
		entries, err := s.Query(ctx, f)
		if err != nil {
			return nil, err
		}
		stats := Aggregate(entries, by, t.loc)
		return &stats, nil
	})
}
