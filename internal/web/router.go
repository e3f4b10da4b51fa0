package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Surfinbird-star/aas2/internal/api"
	"github.com/Surfinbird-star/aas2/internal/metrics"
	webembed "github.com/Surfinbird-star/aas2/web"
)

// NewRouter creates the web page router with all page routes registered.
// Templates are loaded when s has none.
func NewRouter(s *Server, requestTimeout time.Duration) (http.Handler, error) {
	if s.Templates == nil {
		templates, err := LoadTemplates()
		if err != nil {
			return nil, err
		}
		s.Templates = templates
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware("web"))
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	// Static assets.
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	r.Group(func(r chi.Router) {
		r.Use(s.SessionMiddleware)
		r.Use(s.CartMiddleware)

		// Public pages.
		r.Get("/", s.CatalogPage)
		r.Get("/login", s.LoginPage)
		r.Post("/login", s.LoginSubmit)
		r.Get("/register", s.RegisterPage)
		r.Post("/register", s.RegisterSubmit)
		r.Post("/logout", s.Logout)

		r.Get("/cart", s.CartPage)
		r.Post("/cart/add", s.CartAdd)
		r.Post("/cart/clear", s.CartClear)
		r.Post("/cart/{id}/{action}", s.CartUpdate)

		// Signed-in customers.
		r.Group(func(r chi.Router) {
			r.Use(s.RequireSession)

			r.Post("/cart/checkout", s.Checkout)
			r.Get("/orders", s.OrdersPage)
			r.Get("/documents", s.DocumentsPage)
			r.Post("/documents", s.DocumentUpload)
			r.Post("/documents/{id}/delete", s.DocumentDelete)
		})

		// Administrators.
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.RequireAdmin)

			r.Get("/", s.AdminDashboard)

			r.Get("/orders", s.AdminOrdersPage)
			r.Get("/orders/export", s.AdminOrdersExport)
			r.Post("/orders/{id}/status", s.AdminOrderStatus)
			r.Post("/orders/{id}/items", s.AdminOrderItems)

			r.Get("/products", s.AdminProductsPage)
			r.Post("/products", s.ProductCreateSubmit)
			r.Post("/products/{id}", s.ProductUpdateSubmit)
			r.Post("/products/{id}/delete", s.ProductDeleteSubmit)
			r.Post("/products/{id}/image", s.ProductImageSubmit)

			r.Get("/categories", s.AdminCategoriesPage)
			r.Post("/categories", s.CategoryCreateSubmit)
			r.Post("/categories/{id}", s.CategoryUpdateSubmit)
			r.Post("/categories/{id}/delete", s.CategoryDeleteSubmit)

			r.Get("/users", s.AdminUsersPage)
			r.Post("/users/{id}", s.AdminUserUpdate)
		})
	})

	return r, nil
}
