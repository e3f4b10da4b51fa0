package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/document"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/store"
)

// UsersHandler handles the admin user management endpoints.
type UsersHandler struct {
	DB        *sql.DB
	Gate      *auth.Gate
	Documents *document.Service
}

type updateUserRequest struct {
	model.ProfileInput
	IsAdmin *bool `json:"is_admin"`
}

// List handles GET /api/admin/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := store.ListProfiles(r.Context(), h.DB)
	if err != nil {
		writeError(w, r, err, "failed to list users")
		return
	}
	if profiles == nil {
		profiles = []model.Profile{}
	}
	jsonResponse(w, http.StatusOK, profiles)
}

// Get handles GET /api/admin/users/{id}.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := store.GetProfile(r.Context(), h.DB, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "failed to get user")
		return
	}
	if p == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// Update handles PUT /api/admin/users/{id}. Changing the admin flag drops
// the user's cached gate decision so it applies immediately.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	claims := GetClaims(r.Context())

	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, r, err, "")
		return
	}

	if req.IsAdmin != nil && id == claims.UserID && !*req.IsAdmin {
		jsonError(w, http.StatusBadRequest, "cannot revoke your own administrator access")
		return
	}

	if err := store.UpdateProfile(r.Context(), h.DB, id, req.ProfileInput); err != nil {
		writeError(w, r, err, "failed to update user")
		return
	}

	if req.IsAdmin != nil {
		if err := store.SetAdmin(r.Context(), h.DB, id, *req.IsAdmin); err != nil {
			writeError(w, r, err, "failed to update admin flag")
			return
		}
		h.Gate.Invalidate(id)
		slog.Info("admin flag changed", "admin", claims.UserID, "user", id, "is_admin", *req.IsAdmin)
	}

	h.Get(w, r)
}

// ListDocuments handles GET /api/admin/users/{id}/documents.
func (h *UsersHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Documents.ForUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "failed to list documents")
		return
	}
	jsonResponse(w, http.StatusOK, docs)
}
