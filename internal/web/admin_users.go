package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/store"
)

// UserRow is a profile with its uploaded documents.
type UserRow struct {
	Profile   model.Profile
	Documents []model.Document
}

type adminUsersPage struct {
	PageData
	Users []UserRow
}

// AdminUsersPage handles GET /admin/users.
func (s *Server) AdminUsersPage(w http.ResponseWriter, r *http.Request) {
	profiles, err := store.ListProfiles(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
	}

	rows := make([]UserRow, 0, len(profiles))
	for _, p := range profiles {
		docs, err := s.Documents.ForUser(r.Context(), p.ID)
		if err != nil {
			slog.Error("failed to list user documents", "user", p.ID, "error", err)
		}
		rows = append(rows, UserRow{Profile: p, Documents: docs})
	}

	s.Templates.Render(w, "admin_users.html", &adminUsersPage{
		PageData: s.page(w, r, "Пользователи"),
		Users:    rows,
	})
}

// AdminUserUpdate handles POST /admin/users/{id}. It saves the contact
// fields and the admin flag; a changed flag drops the user's cached gate
// decision.
func (s *Server) AdminUserUpdate(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id := chi.URLParam(r, "id")

	in := model.ProfileInput{
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Email:     r.FormValue("email"),
		Phone:     r.FormValue("phone"),
		Address:   r.FormValue("address"),
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		redirectErr(w, r, "/admin/users", "invalid")
		return
	}
	isAdmin := r.FormValue("is_admin") == "on"

	if id == claims.UserID && !isAdmin {
		redirectErr(w, r, "/admin/users", "self_admin")
		return
	}

	if err := store.UpdateProfile(r.Context(), s.DB, id, in); err != nil {
		if !errors.Is(err, model.ErrEmailTaken) && !errors.Is(err, model.ErrNotFound) {
			slog.Error("failed to update user", "user", id, "error", err)
		}
		redirectErr(w, r, "/admin/users", errorCode(err))
		return
	}

	was, err := store.GetAdminFlag(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to read admin flag", "user", id, "error", err)
		redirectErr(w, r, "/admin/users", errorCode(err))
		return
	}
	if was != isAdmin {
		if err := store.SetAdmin(r.Context(), s.DB, id, isAdmin); err != nil {
			slog.Error("failed to update admin flag", "user", id, "error", err)
			redirectErr(w, r, "/admin/users", "internal")
			return
		}
		s.Gate.Invalidate(id)
		slog.Info("admin flag changed", "admin", claims.UserID, "user", id, "is_admin", isAdmin)
	}
	redirectOK(w, r, "/admin/users", "user_saved")
}
