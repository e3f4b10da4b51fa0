package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/document"
	"github.com/Surfinbird-star/aas2/internal/metrics"
	"github.com/Surfinbird-star/aas2/internal/objstore"
	"github.com/Surfinbird-star/aas2/internal/order"
)

// Deps are the collaborators of the API handlers.
type Deps struct {
	DB             *sql.DB
	JWTSecret      string
	SessionTTL     time.Duration
	RequestTimeout time.Duration
	Gate           *auth.Gate
	Orders         *order.Service
	Documents      *document.Service
	Images         objstore.Bucket
}

// NewRouter creates the API router with all endpoints registered under /api.
func NewRouter(d Deps) http.Handler {
	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, SessionTTL: d.SessionTTL, Gate: d.Gate}
	catalogHandler := &CatalogHandler{DB: d.DB, Images: d.Images}
	ordersHandler := &OrdersHandler{Orders: d.Orders, Gate: d.Gate}
	documentsHandler := &DocumentsHandler{Documents: d.Documents, Gate: d.Gate}
	usersHandler := &UsersHandler{DB: d.DB, Gate: d.Gate, Documents: d.Documents}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	requireAdmin := RequireAdmin(d.Gate)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware("api"))
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}

	r.Route("/api", func(r chi.Router) {
		// Public.
		r.Get("/health", health(d.DB))
		r.Post("/auth/login", authHandler.Login)
		r.With(OptionalAuth(d.JWTSecret, d.DB)).Post("/register", authHandler.Register)
		r.Get("/categories", catalogHandler.ListCategories)
		r.Get("/products", catalogHandler.ListProducts)
		r.Get("/products/{id}", catalogHandler.GetProduct)
		r.Get("/products/{id}/image", catalogHandler.GetImage)

		// Authenticated.
		r.Group(func(r chi.Router) {
			r.Use(authMW)

			r.Post("/auth/logout", authHandler.Logout)
			r.Put("/auth/password", authHandler.ChangePassword)
			r.Get("/profile", authHandler.Profile)
			r.Put("/profile", authHandler.UpdateProfile)

			r.Get("/orders", ordersHandler.List)
			r.Post("/orders", ordersHandler.Create)
			r.Get("/orders/can-checkout", ordersHandler.CanCheckout)
			r.Get("/orders/{id}", ordersHandler.Get)

			r.Get("/documents", documentsHandler.List)
			r.Post("/upload", documentsHandler.Upload)
			r.Get("/documents/download", documentsHandler.Download)
			r.Delete("/documents/{id}", documentsHandler.Delete)

			// Administrators.
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Post("/categories", catalogHandler.CreateCategory)
				r.Put("/categories/{id}", catalogHandler.UpdateCategory)
				r.Delete("/categories/{id}", catalogHandler.DeleteCategory)

				r.Post("/products", catalogHandler.CreateProduct)
				r.Put("/products/{id}", catalogHandler.UpdateProduct)
				r.Delete("/products/{id}", catalogHandler.DeleteProduct)
				r.Put("/products/{id}/image", catalogHandler.UploadImage)

				r.Get("/admin/orders", ordersHandler.Console)
				r.Get("/admin/orders/export", ordersHandler.Export)
				r.Put("/admin/orders/{id}/status", ordersHandler.SetStatus)
				r.Put("/admin/orders/{id}/items", ordersHandler.SaveItems)
				r.Get("/admin/stats", ordersHandler.Stats)

				r.Get("/admin/users", usersHandler.List)
				r.Get("/admin/users/{id}", usersHandler.Get)
				r.Put("/admin/users/{id}", usersHandler.Update)
				r.Get("/admin/users/{id}/documents", usersHandler.ListDocuments)
			})
		})
	})

	return r
}

func health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
