package handler

import (
	"log/slog"
	"net/http"

	"edms/internal/domain/services"
	"edms/internal/httputil"
)

// UserHandler handles the caller's profile and user administration
type UserHandler struct {
	userService services.UserService
	logger      *slog.Logger
}

func NewUserHandler(userService services.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger}
}

// GetProfile
// GET /api/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), user)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, profile)
}

// UpdateProfile
// PATCH /api/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req services.UpdateProfileRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	profile, err := h.userService.UpdateProfile(r.Context(), user, &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, profile)
}

// ListUsers
// GET /api/admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	users, err := h.userService.ListUsers(r.Context(), user)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, users)
}

// CreateUser
// POST /api/admin/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req services.CreateUserRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	created, err := h.userService.CreateUser(r.Context(), user, &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, created)
}

// UpdateUser
// PATCH /api/admin/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}

	var req services.UpdateUserRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	updated, err := h.userService.UpdateUser(r.Context(), user, id, &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, updated)
}

// DeleteUser
// DELETE /api/admin/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}

	if err := h.userService.DeleteUser(r.Context(), user, id); err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondNoContent(w)
}

// ToggleEmailNotifications flips a user's email preference
// POST /api/admin/users/{id}/toggle-notifications
func (h *UserHandler) ToggleEmailNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}

	updated, err := h.userService.ToggleEmailNotifications(r.Context(), user, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, updated)
}

// ListUserDocuments lists the documents a user owns
// GET /api/admin/users/{id}/documents
func (h *UserHandler) ListUserDocuments(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}

	docs, err := h.userService.ListUserDocuments(r.Context(), user, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, docs)
}
