/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. instrument: Prometheus request metrics
  6. CORS:       Cross-origin requests for frontend
  7. Identity:   X-Employee-ID into the request context

ROUTE GROUPS:
  /api/entries/*        Time entries
  /api/employees/*      Per-employee active session
  /api/me/*             Caller's own session
  /api/stats            Aggregation
  /api/monitor/*        Long-running session report
  /metrics              Prometheus
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware. The identity header is trusted as
  forwarded by the gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/timetrack/serve.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	Monitor        *SessionMonitor // optional; enables /api/monitor/sessions
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", EmployeeHeader},
		AllowCredentials: true,
	}))
	r.Use(Identity)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Entry routes
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.ListEntries)
			r.Post("/", h.StartEntry)
			r.Get("/{id}", h.GetEntry)
			r.Patch("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
		})

		// Employee session routes
		r.Route("/employees/{id}", func(r chi.Router) {
			r.Get("/active", h.GetActiveEntry)
			r.Post("/stop", h.StopActive)
		})

		// Self-scoped routes
		r.Route("/me", func(r chi.Router) {
			r.Post("/entries", h.StartOwnEntry)
			r.Get("/active", h.GetOwnActiveEntry)
			r.Post("/stop", h.StopOwnActive)
		})

		r.Get("/stats", h.GetStats)

		if opts.Monitor != nil {
			r.Method(http.MethodGet, "/monitor/sessions", opts.Monitor)
		}
	})

	return r
}
