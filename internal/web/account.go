package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Surfinbird-star/aas2/internal/document"
	"github.com/Surfinbird-star/aas2/internal/model"
)

type ordersPage struct {
	PageData
	Orders []model.Order
}

type documentsPage struct {
	PageData
	Documents []model.Document
	MaxSize   int64
}

// OrdersPage handles GET /orders.
func (s *Server) OrdersPage(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	orders, err := s.Orders.ForUser(r.Context(), claims.UserID)
	if err != nil {
		slog.Error("failed to list orders", "user", claims.UserID, "error", err)
	}
	s.Templates.Render(w, "orders.html", &ordersPage{
		PageData: s.page(w, r, "Мои заказы"),
		Orders:   orders,
	})
}

// DocumentsPage handles GET /documents.
func (s *Server) DocumentsPage(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	docs, err := s.Documents.ForUser(r.Context(), claims.UserID)
	if err != nil {
		slog.Error("failed to list documents", "user", claims.UserID, "error", err)
	}
	s.Templates.Render(w, "documents.html", &documentsPage{
		PageData:  s.page(w, r, "Документы"),
		Documents: docs,
		MaxSize:   s.Documents.MaxSize(),
	})
}

// DocumentUpload handles POST /documents.
func (s *Server) DocumentUpload(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.Documents.MaxSize()+(1<<20))
	if err := r.ParseMultipartForm(s.Documents.MaxSize()); err != nil {
		redirectErr(w, r, "/documents", "doc_invalid")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		redirectErr(w, r, "/documents", "doc_invalid")
		return
	}
	defer file.Close()

	doc, err := s.Documents.Upload(r.Context(), document.Upload{
		UserID:   claims.UserID,
		Filename: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Body:     file,
	})
	switch {
	case errors.Is(err, model.ErrDocumentExists):
		redirectErr(w, r, "/documents", "doc_exists")
		return
	case errors.Is(err, model.ErrValidation):
		redirectErr(w, r, "/documents", "doc_invalid")
		return
	case err != nil:
		slog.Error("failed to upload document", "user", claims.UserID, "error", err)
		redirectErr(w, r, "/documents", "internal")
		return
	}

	slog.Info("document uploaded", "user", claims.UserID, "document", doc.ID)
	redirectOK(w, r, "/documents", "doc_uploaded")
}

// DocumentDelete handles POST /documents/{id}/delete for the owner and for
// administrators. Deleting a document that is already gone succeeds.
func (s *Server) DocumentDelete(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	back := SafeNext(r.FormValue("back"))
	if back == "/" {
		back = "/documents"
	}

	id, err := pathID(r, "id")
	if err != nil {
		redirectErr(w, r, back, "invalid")
		return
	}

	doc, err := s.Documents.Get(r.Context(), id)
	switch {
	case errors.Is(err, model.ErrNotFound):
		redirectOK(w, r, back, "doc_deleted")
		return
	case err != nil:
		slog.Error("failed to get document", "document", id, "error", err)
		redirectErr(w, r, back, "internal")
		return
	}
	if doc.UserID != claims.UserID && !s.Gate.Check(r.Context(), claims).Authorized {
		redirectErr(w, r, back, "forbidden")
		return
	}

	if err := s.Documents.Delete(r.Context(), id); err != nil {
		slog.Error("failed to delete document", "document", id, "error", err)
		redirectErr(w, r, back, "internal")
		return
	}
	slog.Info("document deleted", "user", claims.UserID, "document", id, "owner", doc.UserID)
	redirectOK(w, r, back, "doc_deleted")
}
