package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/document"
	"github.com/Surfinbird-star/aas2/internal/model"
)

// multipartOverhead is the slack allowed above the file limit for the rest
// of the multipart body.
const multipartOverhead = 1 << 20

// DocumentsHandler handles identity document endpoints.
type DocumentsHandler struct {
	Documents *document.Service
	Gate      *auth.Gate
}

// List handles GET /api/documents.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	docs, err := h.Documents.ForUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err, "failed to list documents")
		return
	}
	jsonResponse(w, http.StatusOK, docs)
}

// Upload handles POST /api/upload with a multipart "file" and an optional
// "user_id". Uploading for another user requires administrator access.
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.Documents.MaxSize()+multipartOverhead)
	if err := r.ParseMultipartForm(h.Documents.MaxSize()); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, model.NewValidationError("file", "file is too large"), "")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, model.NewValidationError("file", "required"), "")
		return
	}
	defer file.Close()

	owner := r.FormValue("user_id")
	if owner == "" {
		owner = claims.UserID
	}
	if owner != claims.UserID && !h.Gate.Check(r.Context(), claims).Authorized {
		jsonError(w, http.StatusForbidden, "cannot upload documents for another user")
		return
	}

	doc, err := h.Documents.Upload(r.Context(), document.Upload{
		UserID:   owner,
		Filename: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		writeError(w, r, err, "failed to upload document")
		return
	}
	jsonResponse(w, http.StatusCreated, doc)
}

// Download handles GET /api/documents/download?id=. It answers 400 for a
// missing or malformed id, 404 when the document or its content is gone
// and 500 when storage fails.
func (h *DocumentsHandler) Download(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		jsonError(w, http.StatusBadRequest, "document id required")
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	doc, err := h.Documents.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "failed to get document")
		return
	}
	if !isOwnerOrAdmin(r.Context(), h.Gate, doc.UserID) {
		jsonError(w, http.StatusNotFound, "document not found")
		return
	}

	doc, rc, err := h.Documents.Open(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "failed to read document")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", doc.MIMEType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	w.Header().Set("Content-Disposition", attachment(doc.Filename))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("streaming document", "document", id, "error", err)
	}
}

// Delete handles DELETE /api/documents/{id}. Deleting a document that no
// longer exists succeeds.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	doc, err := h.Documents.Get(r.Context(), id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		jsonResponse(w, http.StatusOK, map[string]string{"message": "document deleted"})
		return
	case err != nil:
		writeError(w, r, err, "failed to get document")
		return
	}
	if !isOwnerOrAdmin(r.Context(), h.Gate, doc.UserID) {
		jsonError(w, http.StatusForbidden, "cannot delete another user's document")
		return
	}

	if err := h.Documents.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, "failed to delete document")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "document deleted"})
}
