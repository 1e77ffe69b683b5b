package handler

import (
	"log/slog"
	"net/http"

	"edms/internal/domain/services"
	"edms/internal/httputil"
)

// ActivityHandler serves the dashboard, notifications, audit log and
// user search
type ActivityHandler struct {
	activity services.ActivityService
	logger   *slog.Logger
}

func NewActivityHandler(activity services.ActivityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activity: activity, logger: logger}
}

// Dashboard
// GET /api/dashboard
func (h *ActivityHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	dash, err := h.activity.Dashboard(r.Context(), user)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, dash)
}

// ListNotifications
// GET /api/notifications
func (h *ActivityHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	notifications, err := h.activity.ListNotifications(r.Context(), user)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, notifications)
}

// MarkNotificationRead
// POST /api/notifications/{id}/read
func (h *ActivityHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}

	if err := h.activity.MarkNotificationRead(r.Context(), user, id); err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondNoContent(w)
}

// CheckNotifications is polled by the client for the unread badge
// GET /api/notifications/check
func (h *ActivityHandler) CheckNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	check, err := h.activity.CheckNotifications(r.Context(), user)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, check)
}

// ListAuditLog
// GET /api/admin/audit-log?user=&action=&date_from=&date_to=
func (h *ActivityHandler) ListAuditLog(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	userID, err := httputil.QueryInt64(r, "user")
	if err != nil {
		badRequest(w, err)
		return
	}
	q := r.URL.Query()
	req := services.AuditLogRequest{
		UserID:   userID,
		Action:   q.Get("action"),
		DateFrom: q.Get("date_from"),
		DateTo:   q.Get("date_to"),
	}

	logs, err := h.activity.ListAuditLog(r.Context(), user, &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, logs)
}

// SearchUsers looks up recipients for the document form
// GET /api/users/search?q=&document=
func (h *ActivityHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	documentID, err := httputil.QueryInt64(r, "document")
	if err != nil {
		badRequest(w, err)
		return
	}

	users, err := h.activity.SearchUsers(r.Context(), user, r.URL.Query().Get("q"), documentID)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, users)
}
