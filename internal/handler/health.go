package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"edms/internal/httputil"
)

// Pinger checks a dependency. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and database reachability
type HealthHandler struct {
	db     Pinger
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// HealthCheck is a simple health check endpoint
// GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check: database unreachable", "error", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}

	httputil.RespondJSON(w, code, map[string]interface{}{
		"status": status,
		"time":   time.Now(),
	})
}
