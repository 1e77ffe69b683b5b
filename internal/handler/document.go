package handler

import (
	"log/slog"
	"net/http"

	"edms/internal/config"
	"edms/internal/domain/services"
	"edms/internal/httputil"
)

// multipartOverhead is the body allowance for form boundaries and headers
const multipartOverhead = 1 << 20

// DocumentHandler handles document HTTP requests
type DocumentHandler struct {
	docService services.DocumentService
	logger     *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(docService services.DocumentService, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
		logger:     logger,
	}
}

// CreateDocument creates a document and routes it to its recipients
// POST /api/documents
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req services.CreateDocumentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	doc, err := h.docService.CreateDocument(r.Context(), user, &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, doc)
}

// ListDocuments lists documents, optionally filtered
// GET /api/documents?title=&status=&recipient=
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	req := services.ListDocumentsRequest{
		Title:     q.Get("title"),
		Status:    q.Get("status"),
		Recipient: q.Get("recipient"),
	}

	docs, err := h.docService.ListDocuments(r.Context(), user, &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, docs)
}

// ListReceived lists documents the caller is asked to sign
// GET /api/documents/received
func (h *DocumentHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	docs, err := h.docService.ListReceived(r.Context(), user)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, docs)
}

// GetDocument returns the document page
// GET /api/documents/{id}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}

	detail, err := h.docService.GetDocument(r.Context(), user, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, detail)
}

// UpdateDocument updates title, file or recipients
// PATCH /api/documents/{id}
func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}

	var req services.UpdateDocumentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	doc, err := h.docService.UpdateDocument(r.Context(), user, id, &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// DeleteDocument deletes a document
// DELETE /api/documents/{id}
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}

	if err := h.docService.DeleteDocument(r.Context(), user, id); err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondNoContent(w)
}

// SignDocument signs on behalf of the caller
// POST /api/documents/{id}/sign
func (h *DocumentHandler) SignDocument(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}

	doc, err := h.docService.SignDocument(r.Context(), user, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// AddComment posts a recipient comment
// POST /api/documents/{id}/comments
func (h *DocumentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}

	var req services.CommentRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	entry, err := h.docService.AddComment(r.Context(), user, id, &req)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, entry)
}

// GetDocumentLogs returns the audit trail of one document
// GET /api/documents/{id}/logs
func (h *DocumentHandler) GetDocumentLogs(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}

	logs, err := h.docService.GetDocumentLogs(r.Context(), user, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, logs)
}

// FileURLResponse is a short-lived download link
type FileURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// GetFileURL returns a presigned download link for the document file
// GET /api/documents/{id}/file
func (h *DocumentHandler) GetFileURL(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}

	url, err := h.docService.FileURL(r.Context(), user, id)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, FileURLResponse{
		URL:       url,
		ExpiresIn: int(config.FileURLTTL.Seconds()),
	})
}

// UploadResponse carries the key to reference in a document
type UploadResponse struct {
	FileKey string `json:"file_key"`
}

// UploadFile stores a document file
// POST /api/files (multipart form, field "file")
func (h *DocumentHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		handleError(w, h.logger, asUploadError(err))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key, err := h.docService.UploadFile(r.Context(), user, header.Filename, contentType, file, header.Size)
	if err != nil {
		handleError(w, h.logger, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, UploadResponse{FileKey: key})
}
