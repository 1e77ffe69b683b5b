package middleware

import (
	"net/http"
	"strconv"
	"time"

	"edms/internal/metrics"
)

// RouteMatcher reports the route pattern a request will be served by.
// *http.ServeMux satisfies it.
type RouteMatcher interface {
	Handler(r *http.Request) (http.Handler, string)
}

// Metrics counts requests and observes latency per route pattern so that
// path parameters do not blow up label cardinality.
func Metrics(m *metrics.Metrics, routes RouteMatcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeOf(routes, r)

			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// routeOf returns the pattern serving r, or "unmatched"
func routeOf(routes RouteMatcher, r *http.Request) string {
	if routes == nil {
		return "unmatched"
	}
	if _, route := routes.Handler(r); route != "" {
		return route
	}
	return "unmatched"
}
