/*
scheduler.go - Long-running session monitor

PURPOSE:
  Periodically inspects open time entries, publishes how many are open, and
  reports sessions that have been running longer than a threshold (someone
  probably forgot to stop the timer).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Read-only: entries are never closed automatically; an open entry stays
    open until its owner or an administrator stops it
  - The latest report is kept for GET /api/monitor/sessions

CONFIGURATION:
  - CheckInterval: How often to check (default: 5 minutes)
  - Threshold: Age after which a session is reported (default: 12 hours)
  - Enabled: Whether the monitor is active (default: true)

USAGE:
  monitor := NewSessionMonitor(tracker, logger)
  monitor.Start()
  // ... later
  monitor.Stop()
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/warp/timetrack/tracking"
)

// LongSession is an open entry older than the threshold.
type LongSession struct {
	EntryID    string  `json:"entry_id"`
	EmployeeID string  `json:"employee_id"`
	Employee   string  `json:"employee"`
	Task       string  `json:"task"`
	StartTime  string  `json:"start_time"`
	OpenHours  float64 `json:"open_hours"`
}

// MonitorReport is the outcome of one check.
type MonitorReport struct {
	CheckedAt    string        `json:"checked_at"`
	OpenSessions int           `json:"open_sessions"`
	Threshold    string        `json:"threshold"`
	LongSessions []LongSession `json:"long_sessions"`
}

// SessionMonitor reports long-running open sessions.
type SessionMonitor struct {
	Tracker       *tracking.Tracker
	CheckInterval time.Duration
	Threshold     time.Duration
	Enabled       bool
	Clock         tracking.Clock

	log    *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	reportMu sync.RWMutex
	last     *MonitorReport
}

// NewSessionMonitor creates a monitor with default settings.
func NewSessionMonitor(tr *tracking.Tracker, log *slog.Logger) *SessionMonitor {
	if log == nil {
		log = slog.Default()
	}
	return &SessionMonitor{
		Tracker:       tr,
		CheckInterval: 5 * time.Minute,
		Threshold:     12 * time.Hour,
		Enabled:       true,
		Clock:         tracking.SystemClock,
		log:           log.With(slog.String("component", "session-monitor")),
	}
}

// Start begins the monitor.
func (m *SessionMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled || m.CheckInterval <= 0 {
		m.log.Info("disabled, not starting")
		return
	}
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.CheckInterval)
	m.stop = make(chan struct{})
	m.wg.Add(1)

	go m.run()

	m.log.Info("started",
		slog.Duration("interval", m.CheckInterval),
		slog.Duration("threshold", m.Threshold))
}

// Stop stops the monitor and waits for an in-flight check.
func (m *SessionMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker != nil {
		m.ticker.Stop()
		close(m.stop)
		m.wg.Wait()
		m.ticker = nil
		m.log.Info("stopped")
	}
}

func (m *SessionMonitor) run() {
	defer m.wg.Done()

	// Run immediately on start
	m.Check(context.Background())

	for {
		select {
		case <-m.ticker.C:
			m.Check(context.Background())
		case <-m.stop:
			return
		}
	}
}

// Check inspects open sessions once and stores the report.
func (m *SessionMonitor) Check(ctx context.Context) (*MonitorReport, error) {
	active := true
	open, err := m.Tracker.ListEntries(ctx, tracking.Filter{Active: &active})
	if err != nil {
		m.log.ErrorContext(ctx, "listing open sessions failed", slog.String("error", err.Error()))
		return nil, err
	}

	now := m.Clock()
	report := &MonitorReport{
		CheckedAt:    formatInstant(now),
		OpenSessions: len(open),
		Threshold:    m.Threshold.String(),
		LongSessions: []LongSession{},
	}
	for _, e := range open {
		age := now.Sub(e.StartTime)
		if age < m.Threshold {
			continue
		}
		report.LongSessions = append(report.LongSessions, LongSession{
			EntryID:    string(e.ID),
			EmployeeID: string(e.EmployeeID),
			Employee:   e.Details.EmployeeName,
			Task:       e.Details.TaskTitle,
			StartTime:  formatInstant(e.StartTime),
			OpenHours:  float64(int(age.Hours()*100)) / 100,
		})
		m.log.WarnContext(ctx, "long-running session",
			slog.String("entry_id", string(e.ID)),
			slog.String("employee_id", string(e.EmployeeID)),
			slog.Duration("open_for", age.Truncate(time.Minute)))
	}
	sort.Slice(report.LongSessions, func(i, j int) bool {
		return report.LongSessions[i].OpenHours > report.LongSessions[j].OpenHours
	})

	openSessions.Set(float64(report.OpenSessions))
	longSessions.Set(float64(len(report.LongSessions)))

	m.reportMu.Lock()
	m.last = report
	m.reportMu.Unlock()
	return report, nil
}

// LastReport returns the most recent report, or nil before the first check.
func (m *SessionMonitor) LastReport() *MonitorReport {
	m.reportMu.RLock()
	defer m.reportMu.RUnlock()
	return m.last
}

// ServeHTTP serves the latest report, running a check if none exists yet.
func (m *SessionMonitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := m.LastReport()
	if report == nil {
		var err error
		if report, err = m.Check(r.Context()); err != nil {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Kind: tracking.KindInternal.String()})
			return
		}
	}
	writeJSON(w, http.StatusOK, report)
}
