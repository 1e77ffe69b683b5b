package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"edms/internal/config"
	"edms/internal/domain/services"
	"edms/internal/httputil"
)

// TransferHandler handles export, import and database dumps
type TransferHandler struct {
	transferService services.TransferService
	logger          *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(transferService services.TransferService, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		logger:          logger,
	}
}

// ImportResponse represents the response for import operations
type ImportResponse struct {
	Success bool                   `json:"success"`
	Summary services.ImportSummary `json:"summary"`
	Errors  []services.ImportError `json:"errors"`
}

var contentTypes = map[services.Format]string{
	services.FormatCSV: "text/csv; charset=utf-8",
	services.FormatSQL: "application/sql; charset=utf-8",
}

// Export downloads users or documents.
// GET /api/admin/export/{entity}
//
// Query parameters:
//   - format: csv (default) or sql
func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	entity := services.Entity(r.PathValue("entity"))
	format := services.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = services.FormatCSV
	}

	// Encode fully before answering so a failure still gets a proper status
	var buf bytes.Buffer
	if err := h.transferService.Export(r.Context(), user, entity, format, &buf); err != nil {
		handleError(w, h.logger, err)
		return
	}

	filename := fmt.Sprintf("%s_%s.%s", entity, time.Now().UTC().Format("20060102_150405"), format)
	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("export response interrupted", "entity", entity, "error", err)
	}
}

// Dump streams a full pg_dump of the database.
// GET /api/admin/dump
func (h *TransferHandler) Dump(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	filename := fmt.Sprintf("edms_%s.sql", time.Now().UTC().Format("20060102_150405"))
	aw := &attachmentWriter{w: w, filename: filename, contentType: contentTypes[services.FormatSQL]}
	if err := h.transferService.DumpDatabase(r.Context(), user, aw); err != nil {
		if !aw.started {
			handleError(w, h.logger, err)
			return
		}
		// Headers are gone; the client sees a truncated file
		h.logger.Error("database dump interrupted", "error", err)
	}
}

// attachmentWriter sends download headers on the first write, so errors
// raised before any output can still be answered normally
type attachmentWriter struct {
	w           http.ResponseWriter
	filename    string
	contentType string
	started     bool
}

func (a *attachmentWriter) Write(p []byte) (int, error) {
	if !a.started {
		a.started = true
		a.w.Header().Set("Content-Type", a.contentType)
		a.w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, a.filename))
		a.w.WriteHeader(http.StatusOK)
	}
	return a.w.Write(p)
}

// Import applies an uploaded CSV or SQL file.
// POST /api/admin/import/{entity} (multipart form, field "file")
//
// Rows that fail are reported in the response; the rest are applied.
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	entity := services.Entity(r.PathValue("entity"))

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxImportSize+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		handleError(w, h.logger, asUploadError(err))
		return
	}
	defer file.Close()

	h.logger.Info("starting import",
		"entity", entity,
		"file", header.Filename,
		"size", header.Size,
	)

	result, err := h.transferService.Import(r.Context(), user, entity, header.Filename, file)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ImportResponse{
		Success: result.Summary.Failed == 0,
		Summary: result.Summary,
		Errors:  result.Errors,
	})
}
