package web

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/cart"
	"github.com/Surfinbird-star/aas2/internal/store"
)

type webContextKey string

const (
	webClaimsKey webContextKey = "webclaims"
	webCartKey   webContextKey = "webcart"
)

const tokenCookie = "token"

// SessionMiddleware validates the session cookie, checks token revocation
// and adds the claims to the context. Requests without a usable session
// pass through anonymously; an invalid cookie is cleared.
func (s *Server) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(tokenCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := auth.ValidateToken(s.JWTSecret, cookie.Value)
		if err != nil {
			s.clearAuthCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		revoked, err := store.IsTokenRevoked(r.Context(), s.DB, claims.ID)
		if err != nil {
			slog.Error("failed to check token revocation", "error", err)
		}
		if err != nil || revoked {
			s.clearAuthCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), webClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CartMiddleware resolves the browser's cart store once per request.
func (s *Server) CartMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), webCartKey, s.Carts.For(w, r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func cartStore(r *http.Request) cart.Store {
	if st, ok := r.Context().Value(webCartKey).(cart.Store); ok {
		return st
	}
	return &cart.MemoryStore{}
}

// RequireSession sends anonymous visitors to the login page.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return s.navigate(false, next)
}

// RequireAdmin admits only sessions the gate authorizes. Signed-in users
// without the admin flag see a forbidden page.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return s.navigate(true, next)
}

func (s *Server) navigate(adminOnly bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetWebClaims(r.Context())

		var d auth.Decision
		if adminOnly {
			d = s.Gate.Check(r.Context(), claims)
		}

		nav := ResolveNav(returnPath(r), claims, adminOnly, d)
		switch nav.State {
		case NavAuthenticated:
			next.ServeHTTP(w, r)
		case NavForbidden:
			slog.Warn("admin page refused", "user", d.UserID, "path", r.URL.Path)
			pd := s.page(w, r, "Доступ запрещен")
			s.Templates.RenderStatus(w, http.StatusForbidden, "forbidden.html", &pd)
		default:
			if nav.ClearSession {
				slog.Warn("admin check failed, session dropped", "user", d.UserID, "reason", d.Reason)
				s.clearAuthCookie(w)
			}
			http.Redirect(w, r, nav.Location, http.StatusSeeOther)
		}
	})
}

// returnPath is where the user goes back to after signing in. Form posts
// return to the page that submitted them.
func returnPath(r *http.Request) string {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return r.URL.RequestURI()
	}
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Host != r.Host {
		return "/"
	}
	return ref.RequestURI()
}

func (s *Server) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.SessionTTL / time.Second),
	})
}

// clearAuthCookie clears the authentication cookie with consistent attributes.
func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetWebClaims retrieves the JWT claims from web context.
func GetWebClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(webClaimsKey).(*auth.Claims)
	return claims
}
