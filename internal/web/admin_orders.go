package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Surfinbird-star/aas2/internal/api"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/order"
)

type dashboardPage struct {
	PageData
	Stats *model.Stats
}

type adminOrdersPage struct {
	PageData
	Orders    []model.Order
	Filter    order.ConsoleFilter
	Status    string
	ExportURL string
	// Back returns to the console with the current filter.
	Back string
}

// AdminDashboard handles GET /admin.
func (s *Server) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	st, err := s.Orders.Stats(r.Context())
	if err != nil {
		slog.Error("failed to get stats", "error", err)
		st = &model.Stats{}
	}
	s.Templates.Render(w, "admin_dashboard.html", &dashboardPage{
		PageData: s.page(w, r, "Панель администратора"),
		Stats:    st,
	})
}

// consoleQuery keeps only the console filter parameters of q.
func consoleQuery(q url.Values) url.Values {
	out := url.Values{}
	for _, k := range []string{"status", "sort", "q"} {
		if v := q.Get(k); v != "" {
			out.Set(k, v)
		}
	}
	return out
}

// AdminOrdersPage handles GET /admin/orders?status=&sort=&q=.
func (s *Server) AdminOrdersPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := &adminOrdersPage{PageData: s.page(w, r, "Заказы")}

	f, err := order.ParseConsoleFilter(q.Get("status"), q.Get("sort"), q.Get("q"))
	if err != nil {
		data.Error = errorMessages["invalid"]
		f, _ = order.ParseConsoleFilter("", "", q.Get("q"))
	}
	data.Filter = f
	data.Status = string(f.Status)

	orders, err := s.Orders.Console(r.Context(), f)
	if err != nil {
		slog.Error("failed to list orders", "error", err)
		data.Error = errorMessages["internal"]
	}
	data.Orders = orders

	cq := consoleQuery(q).Encode()
	data.ExportURL = "/admin/orders/export"
	data.Back = "/admin/orders"
	if cq != "" {
		data.ExportURL += "?" + cq
		data.Back += "?" + cq
	}
	s.Templates.Render(w, "admin_orders.html", data)
}

// AdminOrdersExport handles GET /admin/orders/export with the console filter.
func (s *Server) AdminOrdersExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := order.ParseConsoleFilter(q.Get("status"), q.Get("sort"), q.Get("q"))
	if err != nil {
		http.Error(w, "invalid filter", http.StatusBadRequest)
		return
	}
	orders, err := s.Orders.Console(r.Context(), f)
	if err != nil {
		slog.Error("failed to list orders for export", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	api.WriteExport(w, orders, time.Now(), GetWebClaims(r.Context()).UserID)
}

// consoleBack returns the console URL a form came from.
func consoleBack(r *http.Request) string {
	back := SafeNext(r.FormValue("back"))
	if !strings.HasPrefix(back, "/admin/orders") {
		return "/admin/orders"
	}
	return back
}

// AdminOrderStatus handles POST /admin/orders/{id}/status.
func (s *Server) AdminOrderStatus(w http.ResponseWriter, r *http.Request) {
	back := consoleBack(r)
	id, err := pathID(r, "id")
	if err != nil {
		redirectErr(w, r, back, "invalid")
		return
	}
	status, err := model.ParseOrderStatus(r.FormValue("status"))
	if err != nil {
		redirectErr(w, r, back, "invalid")
		return
	}

	if err := s.Orders.SetStatus(r.Context(), id, status); err != nil {
		if !errors.Is(err, model.ErrValidation) && !errors.Is(err, model.ErrNotFound) {
			slog.Error("failed to set order status", "order", id, "error", err)
		}
		redirectErr(w, r, back, errorCode(err))
		return
	}
	redirectOK(w, r, back, "status_saved")
}

// AdminOrderItems handles POST /admin/orders/{id}/items. Quantities arrive
// as qty_<item id> fields.
func (s *Server) AdminOrderItems(w http.ResponseWriter, r *http.Request) {
	back := consoleBack(r)
	id, err := pathID(r, "id")
	if err != nil {
		redirectErr(w, r, back, "invalid")
		return
	}
	if err := r.ParseForm(); err != nil {
		redirectErr(w, r, back, "invalid")
		return
	}

	quantities := map[int64]int{}
	for key, vals := range r.PostForm {
		raw, ok := strings.CutPrefix(key, "qty_")
		if !ok || len(vals) == 0 {
			continue
		}
		itemID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			redirectErr(w, r, back, "invalid")
			return
		}
		qty, err := strconv.Atoi(strings.TrimSpace(vals[0]))
		if err != nil {
			redirectErr(w, r, back, "invalid")
			return
		}
		quantities[itemID] = qty
	}

	if err := s.Orders.SaveQuantities(r.Context(), id, quantities); err != nil {
		if !errors.Is(err, model.ErrValidation) && !errors.Is(err, model.ErrNotFound) {
			slog.Error("failed to save quantities", "order", id, "error", err)
		}
		redirectErr(w, r, back, errorCode(err))
		return
	}
	redirectOK(w, r, back, "items_saved")
}
