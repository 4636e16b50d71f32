/*
main.go - Application entry point

PURPOSE:
  Command-line entry point for the time-tracking server and its tooling.

COMMANDS:
  serve     Run the HTTP API (graceful shutdown on SIGINT/SIGTERM)
  migrate   Create or upgrade the database schema
  seed      Load employees, projects and tasks from a YAML fixture
  stats     Print aggregated hours

GLOBAL FLAGS:
  --config     YAML config file (see config package for the format)
  --log-level  debug | info | warn | error
  --db-driver  sqlite3 | sqlite | mysql
  --db         Database path (SQLite) or DSN (MySQL)

  Flags override TIMETRACK_* environment variables, which override the file.

EXAMPLES:
  # Run with file database
  timetrack serve --db ./data/timetrack.db

  # Run with in-memory database and demo data
  timetrack serve --db :memory: --seed-demo

  # Hours per project for March
  timetrack stats --group-by project --from 2024-03-01 --to 2024-03-31

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration loading
*/
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/timetrack/config"
)

var (
	configPath string
	logLevel   string
	dbDriver   string
	dbDSN      string

	cfg    config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:           "timetrack",
		Short:         "Employee time tracking service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("log-level") {
				loaded.Log.Level = logLevel
			}
			if flags.Changed("db-driver") {
				loaded.Database.Driver = dbDriver
			}
			if flags.Changed("db") {
				loaded.Database.DSN = dbDSN
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			cfg = loaded
			logger = cfg.Log.NewLogger(os.Stderr)
			slog.SetDefault(logger)
			return nil
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&dbDriver, "db-driver", config.DriverSQLite, "database driver (sqlite3, sqlite, mysql)")
	pf.StringVar(&dbDSN, "db", "timetrack.db", `database path or DSN; ":memory:" for an in-memory SQLite database`)

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
