/*
Package sqlite provides a SQLite-backed implementation of tracking.TxStore.

PURPOSE:
  Opens the database, migrates the schema, and maps SQLite constraint errors
  onto the tracking error taxonomy. Queries live in store/sqlstore and are
  shared with the MySQL backend.

DRIVERS:
  "sqlite3": github.com/mattn/go-sqlite3 (cgo, default)
  "sqlite":  modernc.org/sqlite (pure Go, for CGO_ENABLED=0 builds)

KEY TABLES:
  employees, projects, tasks: Read-only directory (seeded, owned elsewhere)
  time_entries:               One row per work session

INDEXES:
  - idx_time_entries_one_open: UNIQUE(employee_id) WHERE end_time IS NULL.
    Enforces "at most one open entry per employee" at the storage layer;
    violations surface as tracking.ErrOpenEntryExists.
  - idx_time_entries_employee_start: Active-entry lookup (hot path)
  - idx_time_entries_start: Range filters and aggregation

CONCURRENCY:
  One connection, writers serialized with sync.RWMutex (sqlstore Serialize).
  WAL mode keeps file-backed readers from blocking on the writer.

USAGE:
  store, err := sqlite.New("./data/timetrack.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  tracker := tracking.New(store, tracking.Options{})

SEE ALSO:
  - store/sqlstore: Shared queries
  - store/mysql: MySQL backend
*/
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/warp/timetrack/store/sqlstore"
	"github.com/warp/timetrack/tracking"
)

const (
	DriverCGO    = "sqlite3"
	DriverPureGo = "sqlite"
)

// Options configures Open.
type Options struct {
	Driver string // DriverCGO (default) or DriverPureGo
	Path   string // file path or ":memory:"
	Logger *slog.Logger
}

// Store implements tracking.TxStore using SQLite.
type Store struct {
	*sqlstore.Store
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(Options{Path: dbPath})
}

// Open opens and migrates a SQLite database.
func Open(opts Options) (*Store, error) {
	if opts.Driver == "" {
		opts.Driver = DriverCGO
	}
	dsn, err := dataSourceName(opts.Driver, opts.Path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and matches
	// SQLite's single-writer model.
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{Store: sqlstore.New(db, Dialect, sqlstore.Options{
		Serialize: true,
		Logger:    opts.Logger,
	})}, nil
}

func dataSourceName(driver, path string) (string, error) {
	if path == "" {
		return "", errors.New("sqlite: database path is required")
	}
	switch driver {
	case DriverCGO:
		return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", nil
	case DriverPureGo:
		return path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("sqlite: unknown driver %q", driver)
	}
}

// Migrate creates the database schema.
func Migrate(db *sql.DB) error {
	schema := `
	-- Directory tables (owned by the CRUD subsystems; read-only here)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT,
		project_id TEXT REFERENCES projects(id)
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_project
		ON tasks(project_id);

	-- Time entries
	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		task_id TEXT NOT NULL REFERENCES tasks(id),
		start_time TEXT NOT NULL,
		end_time TEXT,
		duration_minutes INTEGER,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (end_time IS NULL OR end_time >= start_time),
		CHECK ((end_time IS NULL) = (duration_minutes IS NULL))
	);

	-- CRITICAL: at most one open entry per employee
	CREATE UNIQUE INDEX IF NOT EXISTS idx_time_entries_one_open
		ON time_entries(employee_id) WHERE end_time IS NULL;

	CREATE INDEX IF NOT EXISTS idx_time_entries_employee_start
		ON time_entries(employee_id, start_time DESC);
	CREATE INDEX IF NOT EXISTS idx_time_entries_start
		ON time_entries(start_time);
	CREATE INDEX IF NOT EXISTS idx_time_entries_task
		ON time_entries(task_id);
	`

	_, err := db.Exec(schema)
	return err
}

// Dialect is the SQLite flavour of the shared queries.
var Dialect = sqlstore.Dialect{
	Name:     "sqlite",
	Classify: classify,
	Upsert: func(cols []string) string {
		set := make([]string, len(cols))
		for i, c := range cols {
			set[i] = c + " = excluded." + c
		}
		return "ON CONFLICT(id) DO UPDATE SET " + strings.Join(set, ", ")
	},
}

func classify(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique:
			if isOpenEntryError(se.Error()) {
				return tracking.ErrOpenEntryExists
			}
		case sqlite3.ErrConstraintForeignKey:
			return tracking.ErrMissingReference
		}
		return nil
	}

	// modernc.org/sqlite reports constraint failures with the same text.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed") && isOpenEntryError(msg):
		return tracking.ErrOpenEntryExists
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return tracking.ErrMissingReference
	}
	return nil
}

func isOpenEntryError(msg string) bool {
	return strings.Contains(msg, "time_entries.employee_id")
}
