package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecovery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents/{id}/sign", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	mux.HandleFunc("GET /api/admin/dump", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("-- partial dump"))
		panic("pipe closed")
	})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
		wantRoute  string
	}{
		{
			name:       "panic before response",
			method:     http.MethodPost,
			path:       "/api/documents/7/sign",
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal server error",
			wantRoute:  "POST /api/documents/{id}/sign",
		},
		{
			name:       "panic after response started",
			method:     http.MethodGet,
			path:       "/api/admin/dump",
			wantStatus: http.StatusOK,
			wantBody:   "-- partial dump",
			wantRoute:  "GET /api/admin/dump",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&logs, nil))
			h := Recovery(logger, mux)(mux)

			rec := httptest.NewRecorder()
			require.NotPanics(t, func() {
				h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			})

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.Contains(t, logs.String(), `"route":"`+tt.wantRoute+`"`)
			assert.Contains(t, logs.String(), `"msg":"panic recovered"`)
		})
	}
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	h := Recovery(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
