/*
Package config loads server configuration.

PRECEDENCE (lowest to highest):
  1. Defaults (Default)
  2. YAML file (--config)
  3. Environment variables (TIMETRACK_*)
  4. Command-line flags (applied by cmd/timetrack)

EXAMPLE FILE:
  server:
    addr: ":8080"
    allowed_origins: ["http://localhost:3000"]
  database:
    driver: sqlite3          # sqlite3 | sqlite | mysql
    dsn: ./data/timetrack.db
    command_timeout: 5s
  tracking:
    timezone: Europe/Paris
    long_session_threshold: 10h
    monitor_interval: 5m
  log:
    level: info
    format: text

ENVIRONMENT:
  TIMETRACK_SERVER_ADDR, TIMETRACK_ALLOWED_ORIGINS (comma separated),
  TIMETRACK_DB_DRIVER, TIMETRACK_DB_DSN, TIMETRACK_DB_COMMAND_TIMEOUT,
  TIMETRACK_TIMEZONE, TIMETRACK_LONG_SESSION_THRESHOLD,
  TIMETRACK_MONITOR_INTERVAL, TIMETRACK_LOG_LEVEL, TIMETRACK_LOG_FORMAT
*/
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverSQLite       = "sqlite3"
	DriverSQLitePureGo = "sqlite"
	DriverMySQL        = "mysql"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Tracking TrackingConfig `yaml:"tracking"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver         string        `yaml:"driver"`
	DSN            string        `yaml:"dsn"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	MaxOpenConns   int           `yaml:"max_open_conns"` // mysql only
}

type TrackingConfig struct {
	// IANA zone for day/week/month stats buckets.
	Timezone string `yaml:"timezone"`
	// Open sessions older than this are reported by the monitor.
	LongSessionThreshold time.Duration `yaml:"long_session_threshold"`
	// 0 disables the monitor.
	MonitorInterval time.Duration `yaml:"monitor_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Driver:         DriverSQLite,
			DSN:            "timetrack.db",
			CommandTimeout: 5 * time.Second,
		},
		Tracking: TrackingConfig{
			Timezone:             "UTC",
			LongSessionThreshold: 12 * time.Hour,
			MonitorInterval:      5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from defaults, the optional YAML file at path, and the
// environment. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("TIMETRACK_SERVER_ADDR", &c.Server.Addr)
	if v, ok := lookup("TIMETRACK_ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	str("TIMETRACK_DB_DRIVER", &c.Database.Driver)
	str("TIMETRACK_DB_DSN", &c.Database.DSN)
	str("TIMETRACK_TIMEZONE", &c.Tracking.Timezone)
	str("TIMETRACK_LOG_LEVEL", &c.Log.Level)
	str("TIMETRACK_LOG_FORMAT", &c.Log.Format)

	return errors.Join(
		dur("TIMETRACK_DB_COMMAND_TIMEOUT", &c.Database.CommandTimeout),
		dur("TIMETRACK_LONG_SESSION_THRESHOLD", &c.Tracking.LongSessionThreshold),
		dur("TIMETRACK_MONITOR_INTERVAL", &c.Tracking.MonitorInterval),
	)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverSQLite, DriverSQLitePureGo, DriverMySQL:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: is required"))
	}
	if c.Database.CommandTimeout <= 0 {
		errs = append(errs, errors.New("database.command_timeout: must be positive"))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		errs = append(errs, errors.New("server: timeouts must be positive"))
	}
	if _, err := time.LoadLocation(c.Tracking.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("tracking.timezone: %w", err))
	}
	if c.Tracking.LongSessionThreshold <= 0 {
		errs = append(errs, errors.New("tracking.long_session_threshold: must be positive"))
	}
	if c.Tracking.MonitorInterval < 0 {
		errs = append(errs, errors.New("tracking.monitor_interval: must not be negative"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Location returns the stats timezone. Call after Validate.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Tracking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
