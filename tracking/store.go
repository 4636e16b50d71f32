/*
store.go - Persistence interfaces for time entries and the directory

PURPOSE:
  Defines the boundary between the tracking engine and the database. A Store
  is pure data access: it never applies business rules, it only reports
  "not found" and storage-level constraint violations.

KEY INTERFACES:
  Directory: Read-only lookups of employees, tasks, and projects
  Store:     Time entry CRUD plus filtered queries, and Directory
  TxStore:   Store with atomic multi-step execution

UNIQUENESS:
  Implementations MUST reject an Insert or Update that would leave two open
  entries for one employee with ErrOpenEntryExists. SQL backends do this with
  a partial unique index; the memory store checks under its lock.

IMPLEMENTATIONS:
  - tracking/store/memory.go: In-memory, for tests and dev
  - store/sqlite: SQLite (mattn/go-sqlite3 or modernc.org/sqlite)
  - store/mysql: MySQL

SEE ALSO:
  - executor.go: The only caller of WithTx
  - query.go: Filter semantics
*/
package tracking

import "context"

// Directory looks up records owned by other subsystems.
// Lookups return (nil, nil) when the record does not exist.
type Directory interface {
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)
	GetTask(ctx context.Context, id TaskID) (*Task, error)
	GetProject(ctx context.Context, id ProjectID) (*Project, error)
}

// Store handles persistence of time entries.
type Store interface {
	Directory

	// Insert persists a new entry. Returns ErrOpenEntryExists if the entry is
	// open and the employee already has an open entry.
	Insert(ctx context.Context, entry TimeEntry) error

	// Get returns the entry with its display fields, or a *NotFoundError.
	Get(ctx context.Context, id EntryID) (*TimeEntry, error)

	// Update applies a partial update. Returns a *NotFoundError if id is absent.
	Update(ctx context.Context, id EntryID, patch EntryPatch) error

	// Delete removes an entry and reports whether a row was removed.
	Delete(ctx context.Context, id EntryID) (bool, error)

	// OpenForEmployee returns up to limit open entries, most recent first.
	OpenForEmployee(ctx context.Context, employeeID EmployeeID, limit int) ([]TimeEntry, error)

	// Query returns entries matching f, most recent StartTime first.
	Query(ctx context.Context, f Filter) ([]TimeEntry, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back and that error is
	// returned unchanged. If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
