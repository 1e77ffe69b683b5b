package handler

import (
	"log/slog"
	"net/http"

	"edms/internal/domain/services"
	"edms/internal/httputil"
)

// AuthHandler handles registration, login and password reset
type AuthHandler struct {
	authService services.AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService services.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// Register creates a staff account
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, user)
}

// Login exchanges credentials for an access token
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// RequestPasswordReset emails a reset link
// POST /api/auth/password-reset
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req services.PasswordResetRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusAccepted, map[string]string{
		"detail": "password reset link sent",
	})
}

// ConfirmPasswordReset sets a new password with a reset token
// POST /api/auth/password-reset/{token}
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req services.PasswordResetConfirmRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	if err := h.authService.ConfirmPasswordReset(r.Context(), r.PathValue("token"), &req); err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondNoContent(w)
}
