package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/store"
)

type loginPage struct {
	PageData
	Next  string
	Email string
}

type registerPage struct {
	PageData
	Form   model.ProfileInput
	Fields map[string]string
}

var fieldMessages = map[string]string{
	"first_name": "Укажите имя.",
	"last_name":  "Укажите фамилию.",
	"email":      "Укажите корректный email.",
	"password":   "Пароль должен содержать не менее 8 символов.",
}

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := SafeNext(r.URL.Query().Get("next"))
	if nav := ResolveLogin(GetWebClaims(r.Context()), next); nav.State == NavRedirecting {
		http.Redirect(w, r, nav.Location, http.StatusSeeOther)
		return
	}
	s.Templates.Render(w, "login.html", &loginPage{PageData: s.page(w, r, "Вход"), Next: next})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	next := SafeNext(r.FormValue("next"))

	data := &loginPage{PageData: s.page(w, r, "Вход"), Next: next, Email: email}

	if email == "" || password == "" {
		data.Error = "Введите email и пароль."
		s.Templates.RenderStatus(w, http.StatusBadRequest, "login.html", data)
		return
	}

	p, err := store.GetProfileByEmail(r.Context(), s.DB, email)
	if err != nil {
		slog.Error("failed to get profile", "error", err)
		data.Error = "Ошибка входа. Попробуйте позже."
		s.Templates.RenderStatus(w, http.StatusInternalServerError, "login.html", data)
		return
	}
	if p == nil || !auth.CheckPassword(p.PasswordHash, password) {
		slog.Warn("login failed", "email", email, "remote", r.RemoteAddr)
		data.Error = "Неверный email или пароль."
		s.Templates.RenderStatus(w, http.StatusUnauthorized, "login.html", data)
		return
	}

	if !s.startSession(w, p) {
		data.Error = "Ошибка входа. Попробуйте позже."
		s.Templates.RenderStatus(w, http.StatusInternalServerError, "login.html", data)
		return
	}
	slog.Info("user logged in", "user", p.ID, "email", p.Email)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) startSession(w http.ResponseWriter, p *model.Profile) bool {
	token, err := auth.GenerateToken(s.JWTSecret, p.ID, p.Email, s.SessionTTL)
	if err != nil {
		slog.Error("failed to generate token", "error", err)
		return false
	}
	s.setAuthCookie(w, token)
	return true
}

// RegisterPage handles GET /register.
func (s *Server) RegisterPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "register.html", &registerPage{PageData: s.page(w, r, "Регистрация")})
}

// RegisterSubmit handles POST /register.
func (s *Server) RegisterSubmit(w http.ResponseWriter, r *http.Request) {
	in := model.ProfileInput{
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Email:     r.FormValue("email"),
		Phone:     r.FormValue("phone"),
		Address:   r.FormValue("address"),
	}
	in.Normalize()
	password := r.FormValue("password")

	data := &registerPage{PageData: s.page(w, r, "Регистрация"), Form: in, Fields: map[string]string{}}

	var ve *model.ValidationError
	if errors.As(in.Validate(), &ve) {
		for _, fe := range ve.Errors {
			data.Fields[fe.Field] = fieldMessages[fe.Field]
		}
	}
	if model.ValidatePassword(password) != nil {
		data.Fields["password"] = fieldMessages["password"]
	}
	if len(data.Fields) > 0 {
		data.Error = errorMessages["invalid"]
		s.Templates.RenderStatus(w, http.StatusBadRequest, "register.html", data)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		data.Error = errorMessages["internal"]
		s.Templates.RenderStatus(w, http.StatusInternalServerError, "register.html", data)
		return
	}

	p, err := store.CreateProfile(r.Context(), s.DB, "", in, hash, false)
	if errors.Is(err, model.ErrEmailTaken) {
		data.Fields["email"] = errorMessages["email_taken"]
		data.Error = errorMessages["email_taken"]
		s.Templates.RenderStatus(w, http.StatusConflict, "register.html", data)
		return
	}
	if err != nil {
		slog.Error("failed to create profile", "error", err)
		data.Error = errorMessages["internal"]
		s.Templates.RenderStatus(w, http.StatusInternalServerError, "register.html", data)
		return
	}

	slog.Info("user registered", "user", p.ID, "email", p.Email)
	if !s.startSession(w, p) {
		redirectOK(w, r, "/login", "registered")
		return
	}
	redirectOK(w, r, "/", "registered")
}

// Logout handles POST /logout. The token is revoked and the cached admin
// decision for the user is dropped.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if claims := GetWebClaims(r.Context()); claims != nil {
		if err := store.RevokeToken(r.Context(), s.DB, claims.ID, claims.ExpiresAtTime()); err != nil {
			slog.Error("failed to revoke token", "user", claims.UserID, "error", err)
		}
		s.Gate.Invalidate(claims.UserID)
		slog.Info("user logged out", "user", claims.UserID)
	}
	s.clearAuthCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
