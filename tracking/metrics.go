package tracking

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Tracker Commands
// =============================================================================

var (
	// commandsTotal counts tracker operations by outcome.
	// Labels: op (start, stop, update, delete, list, get, active, stats),
	// result (ok, invalid_input, not_found, conflict, internal)
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timetrack",
		Subsystem: "tracker",
		Name:      "commands_total",
		Help:      "Total tracker operations by outcome",
	}, []string{"op", "result"})

	// commandDuration measures operation latency including the transaction.
	// Labels: op
	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "timetrack",
		Subsystem: "tracker",
		Name:      "command_duration_seconds",
		Help:      "Tracker operation latency in seconds",
		Buckets:   []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"op"})

	// sessionsStarted counts successfully opened sessions.
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "timetrack",
		Subsystem: "tracker",
		Name:      "sessions_started_total",
		Help:      "Total time entries started",
	})

	// minutesRecorded accumulates minutes recorded by stop.
	minutesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "timetrack",
		Subsystem: "tracker",
		Name:      "minutes_recorded_total",
		Help:      "Total minutes recorded by stopping active sessions",
	})
)

func observe(op string, err error, started time.Time) {
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	commandsTotal.WithLabelValues(op, result).Inc()
	commandDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
