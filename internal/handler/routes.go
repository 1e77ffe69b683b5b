package handler

import (
	"net/http"

	"edms/internal/middleware"
)

// PublicPaths are served without a bearer token
var PublicPaths = middleware.PublicPaths{
	"/health",
	"/metrics",
	"/api/auth/",
}

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Health   *HealthHandler
	Auth     *AuthHandler
	Users    *UserHandler
	Docs     *DocumentHandler
	Activity *ActivityHandler
	Transfer *TransferHandler
}

// Register adds the API routes to mux (Go 1.22+ enhanced patterns)
func (h *Handlers) Register(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", h.Health.HealthCheck)

	// Auth routes
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/password-reset", h.Auth.RequestPasswordReset)
	mux.HandleFunc("POST /api/auth/password-reset/{token}", h.Auth.ConfirmPasswordReset)

	// Document routes
	mux.HandleFunc("GET /api/documents", h.Docs.ListDocuments)
	mux.HandleFunc("POST /api/documents", h.Docs.CreateDocument)
	mux.HandleFunc("GET /api/documents/received", h.Docs.ListReceived)
	mux.HandleFunc("GET /api/documents/{id}", h.Docs.GetDocument)
	mux.HandleFunc("PATCH /api/documents/{id}", h.Docs.UpdateDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", h.Docs.DeleteDocument)
	mux.HandleFunc("POST /api/documents/{id}/sign", h.Docs.SignDocument)
	mux.HandleFunc("POST /api/documents/{id}/comments", h.Docs.AddComment)
	mux.HandleFunc("GET /api/documents/{id}/logs", h.Docs.GetDocumentLogs)
	mux.HandleFunc("GET /api/documents/{id}/file", h.Docs.GetFileURL)
	mux.HandleFunc("POST /api/files", h.Docs.UploadFile)

	// Dashboard, notifications and search
	mux.HandleFunc("GET /api/dashboard", h.Activity.Dashboard)
	mux.HandleFunc("GET /api/notifications", h.Activity.ListNotifications)
	mux.HandleFunc("GET /api/notifications/check", h.Activity.CheckNotifications)
	mux.HandleFunc("POST /api/notifications/{id}/read", h.Activity.MarkNotificationRead)
	mux.HandleFunc("GET /api/users/search", h.Activity.SearchUsers)

	// Profile
	mux.HandleFunc("GET /api/profile", h.Users.GetProfile)
	mux.HandleFunc("PATCH /api/profile", h.Users.UpdateProfile)

	// Admin routes
	mux.HandleFunc("GET /api/admin/users", h.Users.ListUsers)
	mux.HandleFunc("POST /api/admin/users", h.Users.CreateUser)
	mux.HandleFunc("PATCH /api/admin/users/{id}", h.Users.UpdateUser)
	mux.HandleFunc("DELETE /api/admin/users/{id}", h.Users.DeleteUser)
	mux.HandleFunc("POST /api/admin/users/{id}/toggle-notifications", h.Users.ToggleEmailNotifications)
	mux.HandleFunc("GET /api/admin/users/{id}/documents", h.Users.ListUserDocuments)
	mux.HandleFunc("GET /api/admin/audit-log", h.Activity.ListAuditLog)
	mux.HandleFunc("GET /api/admin/export/{entity}", h.Transfer.Export)
	mux.HandleFunc("POST /api/admin/import/{entity}", h.Transfer.Import)
	mux.HandleFunc("GET /api/admin/dump", h.Transfer.Dump)
}
