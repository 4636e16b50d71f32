package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/warp/timetrack/tracking"
)

// EmployeeHeader carries the acting employee's id. Authentication happens
// upstream; this layer only trusts what the gateway forwards.
const EmployeeHeader = "X-Employee-ID"

type ctxKey struct{}

// Identity stores the acting employee (if any) in the request context.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(EmployeeHeader)); id != "" {
			r = r.WithContext(WithEmployee(r.Context(), tracking.EmployeeID(id)))
		}
		next.ServeHTTP(w, r)
	})
}

// WithEmployee returns ctx carrying the acting employee.
func WithEmployee(ctx context.Context, id tracking.EmployeeID) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// EmployeeFromContext returns the acting employee set by Identity.
func EmployeeFromContext(ctx context.Context) (tracking.EmployeeID, bool) {
	id, ok := ctx.Value(ctxKey{}).(tracking.EmployeeID)
	return id, ok && id != ""
}
