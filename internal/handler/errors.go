package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"edms/internal/domain"
	"edms/internal/httputil"
	"edms/internal/service/transfer"
	"edms/internal/storage"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validationErr *domain.ValidationError
		conflictErr   *domain.ConflictError
		tooLarge      *http.MaxBytesError
	)

	switch {
	case errors.As(err, &validationErr) && len(validationErr.Fields) > 0:
		httputil.RespondErrorWithExtras(w, http.StatusBadRequest, validationErr.Message, map[string]interface{}{
			"fields": validationErr.Fields,
		})
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflictErr):
		httputil.RespondErrorWithExtras(w, http.StatusConflict, conflictErr.Error(), map[string]interface{}{
			"resource_type": conflictErr.ResourceType,
			"resource_id":   conflictErr.ResourceID,
		})
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &tooLarge):
		httputil.RespondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, storage.ErrDisabled), errors.Is(err, transfer.ErrDumpUnavailable):
		httputil.RespondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.Error("request failed", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// badRequest answers malformed input that never reached a service
func badRequest(w http.ResponseWriter, err error) {
	httputil.RespondError(w, http.StatusBadRequest, err.Error())
}
