package api

import (
	"bytes"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/order"
)

// OrdersHandler handles order endpoints for customers and the admin console.
type OrdersHandler struct {
	Orders *order.Service
	Gate   *auth.Gate
}

type placeOrderRequest struct {
	Items    []model.OrderLine `json:"items"`
	Comments string            `json:"comments"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type quantitiesRequest struct {
	Quantities map[int64]int `json:"quantities"`
}

// List handles GET /api/orders.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	orders, err := h.Orders.ForUser(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	jsonResponse(w, http.StatusOK, orders)
}

// Create handles POST /api/orders.
func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.Orders.Place(r.Context(), claims.UserID, req.Items, req.Comments)
	if err != nil {
		writeError(w, r, err, "failed to place order")
		return
	}
	jsonResponse(w, http.StatusCreated, o)
}

// Get handles GET /api/orders/{id}. Customers see only their own orders.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	o, err := h.Orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "failed to get order")
		return
	}
	if !isOwnerOrAdmin(r.Context(), h.Gate, o.UserID) {
		jsonError(w, http.StatusNotFound, "order not found")
		return
	}
	jsonResponse(w, http.StatusOK, o)
}

// CanCheckout handles GET /api/orders/can-checkout.
func (h *OrdersHandler) CanCheckout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	ok, err := h.Orders.CanCheckout(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err, "failed to check orders")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]bool{"can_checkout": ok})
}

func (h *OrdersHandler) consoleFilter(r *http.Request) (order.ConsoleFilter, error) {
	q := r.URL.Query()
	return order.ParseConsoleFilter(q.Get("status"), q.Get("sort"), q.Get("q"))
}

// Console handles GET /api/admin/orders?status=&sort=&q=.
func (h *OrdersHandler) Console(w http.ResponseWriter, r *http.Request) {
	f, err := h.consoleFilter(r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	orders, err := h.Orders.Console(r.Context(), f)
	if err != nil {
		writeError(w, r, err, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	jsonResponse(w, http.StatusOK, orders)
}

// Export handles GET /api/admin/orders/export. It accepts the same filter
// as Console and returns the view as a spreadsheet.
func (h *OrdersHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, err := h.consoleFilter(r)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	orders, err := h.Orders.Console(r.Context(), f)
	if err != nil {
		writeError(w, r, err, "failed to list orders")
		return
	}
	WriteExport(w, orders, time.Now(), GetClaims(r.Context()).UserID)
}

// WriteExport renders orders as an xlsx attachment. user is only logged.
func WriteExport(w http.ResponseWriter, orders []model.Order, now time.Time, user string) {
	var buf bytes.Buffer
	if err := order.WriteXLSX(&buf, orders, now); err != nil {
		slog.Error("exporting orders", "error", err)
		http.Error(w, "failed to export orders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", attachment(order.ExportFilename(now)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("writing export", "error", err)
	}
	slog.Info("orders exported", "count", len(orders), "user", user)
}

// SetStatus handles PUT /api/admin/orders/{id}/status.
func (h *OrdersHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	if err := h.Orders.SetStatus(r.Context(), id, status); err != nil {
		writeError(w, r, err, "failed to update status")
		return
	}
	h.Get(w, r)
}

// SaveItems handles PUT /api/admin/orders/{id}/items.
func (h *OrdersHandler) SaveItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req quantitiesRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Orders.SaveQuantities(r.Context(), id, req.Quantities); err != nil {
		writeError(w, r, err, "failed to save quantities")
		return
	}
	h.Get(w, r)
}

// Stats handles GET /api/admin/stats.
func (h *OrdersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Orders.Stats(r.Context())
	if err != nil {
		writeError(w, r, err, "failed to get stats")
		return
	}
	jsonResponse(w, http.StatusOK, st)
}

// attachment builds a Content-Disposition value. Non-ASCII names are
// encoded per RFC 5987.
func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
