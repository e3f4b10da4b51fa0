package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/cart"
	"github.com/Surfinbird-star/aas2/internal/document"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/objstore"
	"github.com/Surfinbird-star/aas2/internal/order"
	webembed "github.com/Surfinbird-star/aas2/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"statusLabel": func(s model.OrderStatus) string { return s.Label() },
		"statuses":    func() []model.OrderStatus { return model.OrderStatuses },
		"canTransition": func(from, to model.OrderStatus) bool {
			return from != to && model.CanTransition(from, to)
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Local().Format("02.01.2006 15:04")
		},
		"customer": func(o model.Order) string {
			if o.CustomerName == "" {
				return model.UnknownCustomer
			}
			return o.CustomerName
		},
		"fileSize": func(n int64) string {
			switch {
			case n >= 1<<20:
				return fmt.Sprintf("%.1f МБ", float64(n)/(1<<20))
			case n >= 1<<10:
				return fmt.Sprintf("%.1f КБ", float64(n)/(1<<10))
			default:
				return fmt.Sprintf("%d Б", n)
			}
		},
		"acceptAttr": func() string { return document.AcceptAttr },
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"login.html",
		"register.html",
		"catalog.html",
		"cart.html",
		"orders.html",
		"documents.html",
		"forbidden.html",
		"admin_dashboard.html",
		"admin_orders.html",
		"admin_products.html",
		"admin_categories.html",
		"admin_users.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template with an explicit status code.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title     string
	User      *auth.Claims
	IsAdmin   bool
	CartCount int
	Error     string
	Success   string
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB            *sql.DB
	Templates     *Templates
	JWTSecret     string
	SessionTTL    time.Duration
	SecureCookies bool
	Gate          *auth.Gate
	Orders        *order.Service
	Documents     *document.Service
	Carts         cart.Provider
	Images        objstore.Bucket
}

// page builds the base page data for the request: the session, whether the
// gate currently admits it, the cart size and any flash message carried in
// the query string.
func (s *Server) page(w http.ResponseWriter, r *http.Request, title string) PageData {
	claims := GetWebClaims(r.Context())
	pd := PageData{Title: title, User: claims}
	if claims != nil {
		pd.IsAdmin = s.Gate.Check(r.Context(), claims).Authorized
	}
	if c, err := cart.Open(r.Context(), cartStore(r)); err == nil {
		pd.CartCount = c.Units()
	}
	q := r.URL.Query()
	pd.Success = successMessages[q.Get("ok")]
	pd.Error = errorMessages[q.Get("err")]
	return pd
}
