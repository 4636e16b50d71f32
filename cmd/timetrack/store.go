package main

import (
	"context"
	"fmt"

	"github.com/warp/timetrack/config"
	"github.com/warp/timetrack/seed"
	"github.com/warp/timetrack/store/mysql"
	"github.com/warp/timetrack/store/sqlite"
	"github.com/warp/timetrack/tracking"
)

// backend is what every command needs from a database.
type backend interface {
	tracking.TxStore
	seed.Writer
	Close() error
}

// openStore opens (and migrates) the configured database.
func openStore(ctx context.Context, db config.DatabaseConfig) (backend, error) {
	switch db.Driver {
	case config.DriverSQLite, config.DriverSQLitePureGo:
		s, err := sqlite.Open(sqlite.Options{Driver: db.Driver, Path: db.DSN, Logger: logger})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMySQL:
		s, err := mysql.New(ctx, db.DSN, mysql.Options{MaxOpenConns: db.MaxOpenConns, Logger: logger})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", db.Driver)
	}
}

func newTracker(store tracking.TxStore) *tracking.Tracker {
	return tracking.New(store, tracking.Options{
		Logger:         logger,
		CommandTimeout: cfg.Database.CommandTimeout,
		Location:       cfg.Location(),
	})
}
