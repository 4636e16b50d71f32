package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timetrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAreValid(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	// GIVEN: A file that sets a subset of fields
	path := writeFile(t, `
database:
  driver: sqlite
  dsn: ":memory:"
  command_timeout: 2s
tracking:
  timezone: Europe/Paris
  long_session_threshold: 10h
`)

	// WHEN: Loading it
	cfg, err := Load(path)

	// THEN: File values win, untouched sections keep their defaults
	require.NoError(t, err)
	assert.Equal(t, DriverSQLitePureGo, cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.Equal(t, 2*time.Second, cfg.Database.CommandTimeout)
	assert.Equal(t, 10*time.Hour, cfg.Tracking.LongSessionThreshold)
	assert.Equal(t, "Europe/Paris", cfg.Location().String())
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, `
database:
  driver: sqlite3
  dsn: from-file.db
`)
	t.Setenv("TIMETRACK_DB_DRIVER", "mysql")
	t.Setenv("TIMETRACK_DB_DSN", "u:p@tcp(db:3306)/tt")
	t.Setenv("TIMETRACK_MONITOR_INTERVAL", "30s")
	t.Setenv("TIMETRACK_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, "u:p@tcp(db:3306)/tt", cfg.Database.DSN)
	assert.Equal(t, 30*time.Second, cfg.Tracking.MonitorInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_BadEnvDuration(t *testing.T) {
	t.Setenv("TIMETRACK_DB_COMMAND_TIMEOUT", "soon")

	_, err := Load("")

	assert.ErrorContains(t, err, "TIMETRACK_DB_COMMAND_TIMEOUT")
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "postgres"
	cfg.Database.CommandTimeout = 0
	cfg.Tracking.Timezone = "Mars/Olympus"
	cfg.Log.Format = "xml"

	err := cfg.Validate()

	require.Error(t, err)
	assert.ErrorContains(t, err, "database.driver")
	assert.ErrorContains(t, err, "database.command_timeout")
	assert.ErrorContains(t, err, "tracking.timezone")
	assert.ErrorContains(t, err, "log.format")
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"debug", "INFO", "warn", "error"} {
		_, err := ParseLevel(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}
