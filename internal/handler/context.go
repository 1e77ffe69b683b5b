package handler

import (
	"net/http"

	"edms/internal/domain/models"
	"edms/internal/httputil"
)

// currentUser returns the authenticated user or answers 401
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := httputil.GetUser(r)
	if user == nil {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return user, true
}
