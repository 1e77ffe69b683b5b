package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		status   int
	}{
		{"not found", &NotFoundError{Message: "document 1"}, ErrNotFound, http.StatusNotFound},
		{"validation", &ValidationError{Message: "title required"}, ErrValidation, http.StatusBadRequest},
		{"forbidden", &ForbiddenError{Message: "owner only"}, ErrForbidden, http.StatusForbidden},
		{"conflict", &ConflictError{Message: "already signed", ResourceType: "signature"}, ErrConflict, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("sign document: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}

			var httpErr HTTPError
			if !errors.As(wrapped, &httpErr) {
				t.Fatalf("errors.As(HTTPError) = false")
			}
			if httpErr.StatusCode() != tt.status {
				t.Errorf("StatusCode() = %d, want %d", httpErr.StatusCode(), tt.status)
			}
		})
	}
}
