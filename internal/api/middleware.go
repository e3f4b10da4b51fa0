package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/store"
)

type contextKey string

const claimsKey contextKey = "claims"

// TokenCookie is the session cookie shared with the web pages.
const TokenCookie = "token"

// bearerToken returns the session token from the Authorization header,
// falling back to the session cookie.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// sessionClaims validates the request's token and checks it was not revoked.
func sessionClaims(r *http.Request, secret string, db *sql.DB) (*auth.Claims, bool) {
	tokenStr := bearerToken(r)
	if tokenStr == "" {
		return nil, false
	}
	claims, err := auth.ValidateToken(secret, tokenStr)
	if err != nil {
		return nil, false
	}
	revoked, err := store.IsTokenRevoked(r.Context(), db, claims.ID)
	if err != nil {
		slog.Error("checking token revocation", "error", err)
		return nil, false
	}
	if revoked {
		return nil, false
	}
	return claims, true
}

// AuthMiddleware requires a valid, unrevoked session token and adds its
// claims to the context.
func AuthMiddleware(secret string, db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := sessionClaims(r, secret, db)
			if !ok {
				jsonError(w, http.StatusUnauthorized, "missing or invalid session")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalAuth adds claims to the context when a valid session is present
// and lets every request through.
func OptionalAuth(secret string, db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := sessionClaims(r, secret, db); ok {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin lets the request through only when the Gate authorizes the
// session. Missing sessions get 401; every other refusal gets 403.
func RequireAdmin(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := gate.Check(r.Context(), GetClaims(r.Context()))
			if d.Authorized {
				next.ServeHTTP(w, r)
				return
			}
			if d.Reason == auth.ReasonNoSession {
				jsonError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			slog.Warn("admin access denied", "user", d.UserID, "reason", d.Reason, "path", r.URL.Path)
			jsonError(w, http.StatusForbidden, "administrator access required")
		})
	}
}

// WithClaims returns a context carrying the session claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims retrieves the session claims from the context.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// isOwnerOrAdmin reports whether the session may act on a resource owned by
// ownerID.
func isOwnerOrAdmin(ctx context.Context, gate *auth.Gate, ownerID string) bool {
	claims := GetClaims(ctx)
	if claims == nil {
		return false
	}
	if claims.UserID == ownerID {
		return true
	}
	return gate.Check(ctx, claims).Authorized
}

// LoggingMiddleware logs HTTP requests with method, path, status, duration
// and request id.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []any{
			"method", r.Method,
			"uri", r.URL.RequestURI(),
			"status", status,
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if status >= 500 {
			slog.Error("request", attrs...)
		} else {
			slog.Info("request", attrs...)
		}
	})
}
