/*
Package mysql provides a MySQL-backed implementation of tracking.TxStore.

PURPOSE:
  Shared deployments where several server processes write the same database.
  The in-process employee lock no longer covers every writer, so the
  "one open entry per employee" invariant rests on the schema:

    open_employee_id = IF(end_time IS NULL, employee_id, NULL)  STORED
    UNIQUE KEY uq_time_entries_one_open (open_employee_id)

  MySQL has no partial indexes; NULLs never collide in a unique key, so only
  open rows participate. Duplicate-key errors on that key surface as
  tracking.ErrOpenEntryExists.

DSN:
  user:pass@tcp(host:3306)/dbname
  parseTime is not needed: instants are stored as fixed-width text.

SEE ALSO:
  - migrate.go, sql/: Schema
  - store/sqlstore: Shared queries
*/
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/warp/timetrack/store/sqlstore"
	"github.com/warp/timetrack/tracking"
)

// MySQL error numbers mapped by classify.
const (
	errDupEntry        = 1062
	errNoReferencedRow = 1452
)

const openEntryKey = "uq_time_entries_one_open"

// Options tunes the connection pool. Zero values use the defaults below.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          *slog.Logger
}

// Store implements tracking.TxStore using MySQL.
type Store struct {
	*sqlstore.Store
}

// New opens a MySQL connection, pings it, and applies pending migrations.
func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}

	if err := Migrate(ctx, db, opts.Logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: migrate: %w", err)
	}

	return &Store{Store: sqlstore.New(db, Dialect, sqlstore.Options{Logger: opts.Logger})}, nil
}

// Dialect is the MySQL flavour of the shared queries.
var Dialect = sqlstore.Dialect{
	Name:     "mysql",
	Classify: classify,
	Upsert: func(cols []string) string {
		set := make([]string, len(cols))
		for i, c := range cols {
			set[i] = c + " = VALUES(" + c + ")"
		}
		return "ON DUPLICATE KEY UPDATE " + strings.Join(set, ", ")
	},
}

func classify(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return nil
	}
	switch me.Number {
	case errDupEntry:
		if strings.Contains(me.Message, openEntryKey) {
			return tracking.ErrOpenEntryExists
		}
	case errNoReferencedRow:
		return tracking.ErrMissingReference
	}
	return nil
}
