/*
Package sqlstore implements tracking.TxStore over database/sql.

PURPOSE:
  Holds everything the SQL backends share: the time_entries queries with
  their denormalizing joins, filter compilation, row scanning, directory
  lookups, and the transaction wrapper. Backends (store/sqlite, store/mysql)
  own the driver, the schema, and the mapping of constraint errors.

TABLES (created by the backend):
  employees(id, name, email)
  projects(id, name, status)
  tasks(id, title, status, project_id)
  time_entries(id, employee_id, task_id, start_time, end_time,
               duration_minutes, created_at, updated_at)

INSTANTS:
  Stored as fixed-width UTC text (2006-01-02T15:04:05.000000Z) so that
  lexical order equals chronological order in every dialect.

CONCURRENCY:
  With Serialize set (SQLite), a sync.RWMutex serializes writers the way a
  single-writer database expects. Without it (MySQL), the database's own
  locking applies.

SEE ALSO:
  - filter.go: Filter compilation
  - tracking/store.go: Interface definitions
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/warp/timetrack/tracking"
)

// TimeLayout is the stored text form of every instant.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Dialect captures the differences between SQL backends.
type Dialect struct {
	Name string

	// Classify maps a driver error to tracking.ErrOpenEntryExists or
	// tracking.ErrMissingReference. It returns nil for anything else.
	Classify func(err error) error

	// Upsert returns the clause appended to an INSERT to overwrite cols on
	// primary-key conflict.
	Upsert func(cols []string) string
}

// Options configures a Store.
type Options struct {
	Serialize bool
	Logger    *slog.Logger
}

// Store implements tracking.TxStore.
type Store struct {
	db      *sql.DB
	dialect Dialect
	log     *slog.Logger

	serialize bool
	mu        sync.RWMutex
}

// New wraps an open database. The schema must already exist.
func New(db *sql.DB, d Dialect, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{db: db, dialect: d, log: opts.Logger, serialize: opts.Serialize}
}

// DB exposes the underlying handle for backends and tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) rlock() func() {
	if !s.serialize {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) wlock() func() {
	if !s.serialize {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) conn() conn { return conn{q: s.db, d: s.dialect} }

// =============================================================================
// tracking.Store
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id tracking.EmployeeID) (*tracking.Employee, error) {
	defer s.rlock()()
	return s.conn().GetEmployee(ctx, id)
}

func (s *Store) GetTask(ctx context.Context, id tracking.TaskID) (*tracking.Task, error) {
	defer s.rlock()()
	return s.conn().GetTask(ctx, id)
}

func (s *Store) GetProject(ctx context.Context, id tracking.ProjectID) (*tracking.Project, error) {
	defer s.rlock()()
	return s.conn().GetProject(ctx, id)
}

func (s *Store) Insert(ctx context.Context, e tracking.TimeEntry) error {
	defer s.wlock()()
	return s.conn().Insert(ctx, e)
}

func (s *Store) Get(ctx context.Context, id tracking.EntryID) (*tracking.TimeEntry, error) {
	defer s.rlock()()
	return s.conn().Get(ctx, id)
}

func (s *Store) Update(ctx context.Context, id tracking.EntryID, p tracking.EntryPatch) error {
	defer s.wlock()()
	return s.conn().Update(ctx, id, p)
}

func (s *Store) Delete(ctx context.Context, id tracking.EntryID) (bool, error) {
	defer s.wlock()()
	return s.conn().Delete(ctx, id)
}

func (s *Store) OpenForEmployee(ctx context.Context, id tracking.EmployeeID, limit int) ([]tracking.TimeEntry, error) {
	defer s.rlock()()
	return s.conn().OpenForEmployee(ctx, id, limit)
}

func (s *Store) Query(ctx context.Context, f tracking.Filter) ([]tracking.TimeEntry, error) {
	defer s.rlock()()
	return s.conn().Query(ctx, f)
}

// =============================================================================
// TRANSACTIONAL STORE (tracking.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. fn's error is returned
// unchanged after rollback; a failed rollback is logged, not returned.
func (s *Store) WithTx(ctx context.Context, fn func(tracking.Store) error) error {
	defer s.wlock()()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(conn{q: tx, d: s.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.ErrorContext(ctx, "rollback failed",
				slog.String("dialect", s.dialect.Name),
				slog.String("error", rbErr.Error()),
				slog.String("cause", err.Error()))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// DIRECTORY WRITES (seeding; owned by other subsystems in production)
// =============================================================================

// SaveEmployee inserts or replaces an employee.
func (s *Store) SaveEmployee(ctx context.Context, e tracking.Employee) error {
	defer s.wlock()()
	q := `INSERT INTO employees (id, name, email) VALUES (?, ?, ?) ` +
		s.dialect.Upsert([]string{"name", "email"})
	_, err := s.db.ExecContext(ctx, q, string(e.ID), e.Name, e.Email)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// SaveProject inserts or replaces a project.
func (s *Store) SaveProject(ctx context.Context, p tracking.Project) error {
	defer s.wlock()()
	q := `INSERT INTO projects (id, name, status) VALUES (?, ?, ?) ` +
		s.dialect.Upsert([]string{"name", "status"})
	_, err := s.db.ExecContext(ctx, q, string(p.ID), p.Name, p.Status)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// SaveTask inserts or replaces a task.
func (s *Store) SaveTask(ctx context.Context, t tracking.Task) error {
	defer s.wlock()()
	q := `INSERT INTO tasks (id, title, status, project_id) VALUES (?, ?, ?, ?) ` +
		s.dialect.Upsert([]string{"title", "status", "project_id"})
	_, err := s.db.ExecContext(ctx, q, string(t.ID), t.Title, t.Status, nullString(string(t.ProjectID)))
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// DeleteEmployee removes an employee record. It fails while time entries
// still reference the employee.
func (s *Store) DeleteEmployee(ctx context.Context, id tracking.EmployeeID) error {
	defer s.wlock()()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", string(id)); err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	return nil
}

// Reset clears all time entries (for tests and demos).
func (s *Store) Reset(ctx context.Context) error {
	defer s.wlock()()
	_, err := s.db.ExecContext(ctx, "DELETE FROM time_entries")
	return err
}

// =============================================================================
// CONN - queries over *sql.DB or *sql.Tx
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	q querier
	d Dialect
}

const selectEntries = `
	SELECT te.id, te.employee_id, te.task_id, te.start_time, te.end_time, te.duration_minutes,
	       COALESCE(e.name, ''), COALESCE(e.email, ''),
	       COALESCE(t.title, ''), COALESCE(t.status, ''),
	       COALESCE(t.project_id, ''), COALESCE(p.name, 'N/A'), COALESCE(p.status, '')
	FROM time_entries te
	LEFT JOIN employees e ON e.id = te.employee_id
	LEFT JOIN tasks t ON t.id = te.task_id
	LEFT JOIN projects p ON p.id = t.project_id
`

const orderRecentFirst = ` ORDER BY te.start_time DESC, te.id DESC`

func (c conn) GetEmployee(ctx context.Context, id tracking.EmployeeID) (*tracking.Employee, error) {
	var e tracking.Employee
	var email sql.NullString
	err := c.q.QueryRowContext(ctx,
		"SELECT id, name, email FROM employees WHERE id = ?", string(id),
	).Scan(&e.ID, &e.Name, &email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	e.Email = email.String
	return &e, nil
}

func (c conn) GetTask(ctx context.Context, id tracking.TaskID) (*tracking.Task, error) {
	var t tracking.Task
	var status, projectID sql.NullString
	err := c.q.QueryRowContext(ctx,
		"SELECT id, title, status, project_id FROM tasks WHERE id = ?", string(id),
	).Scan(&t.ID, &t.Title, &status, &projectID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	t.Status = status.String
	t.ProjectID = tracking.ProjectID(projectID.String)
	return &t, nil
}

func (c conn) GetProject(ctx context.Context, id tracking.ProjectID) (*tracking.Project, error) {
	var p tracking.Project
	var status sql.NullString
	err := c.q.QueryRowContext(ctx,
		"SELECT id, name, status FROM projects WHERE id = ?", string(id),
	).Scan(&p.ID, &p.Name, &status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	p.Status = status.String
	return &p, nil
}

func (c conn) Insert(ctx context.Context, e tracking.TimeEntry) error {
	now := formatTime(time.Now())
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO time_entries
		(id, employee_id, task_id, start_time, end_time, duration_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(e.ID), string(e.EmployeeID), string(e.TaskID),
		formatTime(e.StartTime), nullTime(e.EndTime), nullInt(e.DurationMinutes),
		now, now,
	)
	if err != nil {
		if mapped := c.d.Classify(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to insert time entry: %w", err)
	}
	return nil
}

func (c conn) Get(ctx context.Context, id tracking.EntryID) (*tracking.TimeEntry, error) {
	entries, err := c.query(ctx, selectEntries+` WHERE te.id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &tracking.NotFoundError{Resource: tracking.ResourceEntry, ID: string(id)}
	}
	return &entries[0], nil
}

func (c conn) Update(ctx context.Context, id tracking.EntryID, p tracking.EntryPatch) error {
	var exists int
	err := c.q.QueryRowContext(ctx, "SELECT 1 FROM time_entries WHERE id = ?", string(id)).Scan(&exists)
	if err == sql.ErrNoRows {
		return &tracking.NotFoundError{Resource: tracking.ResourceEntry, ID: string(id)}
	}
	if err != nil {
		return fmt.Errorf("failed to check time entry: %w", err)
	}
	if p.IsEmpty() {
		return nil
	}

	set := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if p.StartTime != nil {
		set = append(set, "start_time = ?")
		args = append(args, formatTime(*p.StartTime))
	}
	if p.EndTime != nil {
		set = append(set, "end_time = ?")
		args = append(args, formatTime(*p.EndTime))
	}
	if p.DurationMinutes != nil {
		set = append(set, "duration_minutes = ?")
		args = append(args, *p.DurationMinutes)
	}
	set = append(set, "updated_at = ?")
	args = append(args, formatTime(time.Now()), string(id))

	q := "UPDATE time_entries SET " + strings.Join(set, ", ") + " WHERE id = ?"
	if _, err := c.q.ExecContext(ctx, q, args...); err != nil {
		if mapped := c.d.Classify(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to update time entry: %w", err)
	}
	return nil
}

func (c conn) Delete(ctx context.Context, id tracking.EntryID) (bool, error) {
	res, err := c.q.ExecContext(ctx, "DELETE FROM time_entries WHERE id = ?", string(id))
	if err != nil {
		return false, fmt.Errorf("failed to delete time entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete time entry: %w", err)
	}
	return n > 0, nil
}

func (c conn) OpenForEmployee(ctx context.Context, id tracking.EmployeeID, limit int) ([]tracking.TimeEntry, error) {
	if limit <= 0 {
		limit = 1
	}
	return c.query(ctx,
		selectEntries+` WHERE te.employee_id = ? AND te.end_time IS NULL`+orderRecentFirst+` LIMIT ?`,
		string(id), limit)
}

func (c conn) Query(ctx context.Context, f tracking.Filter) ([]tracking.TimeEntry, error) {
	where, args := CompileFilter(f)
	return c.query(ctx, selectEntries+where+orderRecentFirst, args...)
}

func (c conn) query(ctx context.Context, q string, args ...any) ([]tracking.TimeEntry, error) {
	rows, err := c.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer rows.Close()

	entries := []tracking.TimeEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (tracking.TimeEntry, error) {
	var (
		e         tracking.TimeEntry
		start     string
		end       sql.NullString
		duration  sql.NullInt64
		projectID string
	)
	err := rows.Scan(
		&e.ID, &e.EmployeeID, &e.TaskID, &start, &end, &duration,
		&e.Details.EmployeeName, &e.Details.EmployeeEmail,
		&e.Details.TaskTitle, &e.Details.TaskStatus,
		&projectID, &e.Details.ProjectName, &e.Details.ProjectStatus,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan time entry: %w", err)
	}

	e.StartTime, err = parseTime(start)
	if err != nil {
		return e, err
	}
	if end.Valid {
		t, err := parseTime(end.String)
		if err != nil {
			return e, err
		}
		e.EndTime = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		e.DurationMinutes = &d
	}
	e.Details.ProjectID = tracking.ProjectID(projectID)
	if projectID == "" {
		e.Details.ProjectName = tracking.NoProjectName
	}
	return e, nil
}

// Helper functions

func formatTime(t time.Time) string {
	return tracking.Normalize(t).Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return t, fmt.Errorf("failed to parse stored instant %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
