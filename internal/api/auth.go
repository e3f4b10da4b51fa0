package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/store"
)

// AuthHandler handles sign-in, sign-out, registration and the caller's
// profile.
type AuthHandler struct {
	DB         *sql.DB
	JWTSecret  string
	SessionTTL time.Duration
	Gate       *auth.Gate
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token   string         `json:"token"`
	Profile *model.Profile `json:"profile"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type registerRequest struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Password  string `json:"password"`
}

func (req *registerRequest) input() model.ProfileInput {
	in := model.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
	}
	in.Normalize()
	return in
}

func (h *AuthHandler) issue(w http.ResponseWriter, status int, p *model.Profile) {
	token, err := auth.GenerateToken(h.JWTSecret, p.ID, p.Email, h.SessionTTL)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	jsonResponse(w, status, sessionResponse{Token: token, Profile: p})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	p, err := store.GetProfileByEmail(r.Context(), h.DB, req.Email)
	if err != nil {
		writeError(w, r, err, "internal error")
		return
	}
	if p == nil || !auth.CheckPassword(p.PasswordHash, req.Password) {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	slog.Info("user logged in", "user", p.ID, "email", p.Email)
	h.issue(w, http.StatusOK, p)
}

// Logout handles POST /api/auth/logout. The token is revoked and the cached
// admin decision for the user is dropped.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAtTime()); err != nil {
		writeError(w, r, err, "failed to revoke session")
		return
	}
	h.Gate.Invalidate(claims.UserID)

	slog.Info("user logged out", "user", claims.UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		writeError(w, r, model.NewValidationError("new_password", err.Error()), "")
		return
	}

	p, err := store.GetProfile(r.Context(), h.DB, claims.UserID)
	if err != nil || p == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !auth.CheckPassword(p.PasswordHash, req.CurrentPassword) {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	if err := store.UpdateProfilePassword(r.Context(), h.DB, claims.UserID, hash); err != nil {
		writeError(w, r, err, "failed to update password")
		return
	}

	slog.Info("user changed own password", "user", claims.UserID)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// Register handles POST /api/register. Without an id it registers the
// caller and returns a session. With an id it creates or updates that
// profile, which only administrators may do.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in := req.input()

	verr := &model.ValidationError{}
	if err, ok := in.Validate().(*model.ValidationError); ok && err != nil {
		verr.Errors = append(verr.Errors, err.Errors...)
	}

	if req.ID == "" {
		if req.Password == "" {
			verr.Add("password", "required")
		} else if err := model.ValidatePassword(req.Password); err != nil {
			verr.Add("password", err.Error())
		}
		if verr.HasErrors() {
			writeError(w, r, verr, "")
			return
		}
		h.selfRegister(w, r, in, req.Password)
		return
	}

	if verr.HasErrors() {
		writeError(w, r, verr, "")
		return
	}
	h.upsert(w, r, req.ID, in, req.Password)
}

func (h *AuthHandler) selfRegister(w http.ResponseWriter, r *http.Request, in model.ProfileInput, password string) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	p, err := store.CreateProfile(r.Context(), h.DB, "", in, hash, false)
	if err != nil {
		writeError(w, r, err, "failed to create profile")
		return
	}

	slog.Info("user registered", "user", p.ID, "email", p.Email)
	h.issue(w, http.StatusCreated, p)
}

func (h *AuthHandler) upsert(w http.ResponseWriter, r *http.Request, id string, in model.ProfileInput, password string) {
	claims := GetClaims(r.Context())
	d := h.Gate.Check(r.Context(), claims)
	if !d.Authorized {
		if d.Reason == auth.ReasonNoSession {
			jsonError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		jsonError(w, http.StatusForbidden, "administrator access required")
		return
	}

	hash := ""
	if password != "" {
		if err := model.ValidatePassword(password); err != nil {
			writeError(w, r, model.NewValidationError("password", err.Error()), "")
			return
		}
		var err error
		if hash, err = auth.HashPassword(password); err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to hash password")
			return
		}
	}

	p, created, err := store.UpsertProfile(r.Context(), h.DB, id, in, hash)
	if err != nil {
		writeError(w, r, err, "failed to save profile")
		return
	}

	// A lookup for this id may have been cached before the profile existed.
	h.Gate.Invalidate(p.ID)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	slog.Info("profile saved by admin", "admin", claims.UserID, "user", p.ID, "created", created)
	jsonResponse(w, status, p)
}

// Profile handles GET /api/profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	p, err := store.GetProfile(r.Context(), h.DB, claims.UserID)
	if err != nil {
		writeError(w, r, err, "failed to get profile")
		return
	}
	if p == nil {
		jsonError(w, http.StatusNotFound, "profile not found")
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

// UpdateProfile handles PUT /api/profile.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var in model.ProfileInput
	if err := decodeJSON(r, &in); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		writeError(w, r, err, "")
		return
	}

	if err := store.UpdateProfile(r.Context(), h.DB, claims.UserID, in); err != nil {
		writeError(w, r, err, "failed to update profile")
		return
	}
	h.Profile(w, r)
}
