package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"edms/internal/httputil"
)

// Recovery turns a handler panic into a 500 problem response. The log line
// carries the route pattern so panics group per endpoint. When the handler
// had already started its response only the log line is written.
func Recovery(logger *slog.Logger, routes RouteMatcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.Error("panic recovered",
					"error", err,
					"route", routeOf(routes, r),
					"path", r.URL.Path,
					"method", r.Method,
					"response_started", rec.started,
					"stack", string(debug.Stack()),
				)
				if !rec.started {
					httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
