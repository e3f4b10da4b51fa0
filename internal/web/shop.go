package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Surfinbird-star/aas2/internal/cart"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/store"
)

type catalogPage struct {
	PageData
	Categories []model.Category
	Products   []model.Product
	CategoryID int64
	InCart     map[int64]int
}

// CartLine is a cart entry joined with its product.
type CartLine struct {
	Product  model.Product
	Quantity int
}

type cartPage struct {
	PageData
	Lines       []CartLine
	CanCheckout bool
	Processing  bool
}

// CatalogPage handles GET /. An optional ?category= narrows the list.
func (s *Server) CatalogPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categoryID, _ := strconv.ParseInt(r.URL.Query().Get("category"), 10, 64)

	categories, err := store.ListCategories(ctx, s.DB)
	if err != nil {
		slog.Error("failed to list categories", "error", err)
	}
	products, err := store.ListProducts(ctx, s.DB, categoryID)
	if err != nil {
		slog.Error("failed to list products", "error", err)
	}

	data := &catalogPage{
		PageData:   s.page(w, r, "Каталог"),
		Categories: categories,
		Products:   products,
		CategoryID: categoryID,
		InCart:     map[int64]int{},
	}
	if c, err := s.openCart(r); err == nil {
		data.InCart = c.Items()
	}
	s.Templates.Render(w, "catalog.html", data)
}

func (s *Server) openCart(r *http.Request) (*cart.Cart, error) {
	c, err := cart.Open(r.Context(), cartStore(r))
	if err != nil {
		slog.Error("failed to open cart", "error", err)
	}
	return c, err
}

// cartLines joins the cart with the catalog. Products that no longer exist
// are dropped from the cart.
func (s *Server) cartLines(ctx context.Context, c *cart.Cart) ([]CartLine, error) {
	var lines []CartLine
	for _, l := range c.Lines() {
		p, err := store.GetProduct(ctx, s.DB, l.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			if err := c.Remove(ctx, l.ProductID); err != nil {
				slog.Warn("failed to drop missing product from cart", "product", l.ProductID, "error", err)
			}
			continue
		}
		lines = append(lines, CartLine{Product: *p, Quantity: l.Quantity})
	}
	return lines, nil
}

// CartPage handles GET /cart.
func (s *Server) CartPage(w http.ResponseWriter, r *http.Request) {
	c, err := s.openCart(r)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	lines, err := s.cartLines(r.Context(), c)
	if err != nil {
		slog.Error("failed to load cart products", "error", err)
	}

	data := &cartPage{PageData: s.page(w, r, "Корзина"), Lines: lines}
	data.CartCount = c.Units()
	if claims := GetWebClaims(r.Context()); claims != nil {
		ok, err := s.Orders.CanCheckout(r.Context(), claims.UserID)
		if err != nil {
			slog.Error("failed to check processing orders", "user", claims.UserID, "error", err)
		}
		data.Processing = err == nil && !ok
		data.CanCheckout = err == nil && ok && !c.Empty()
	} else {
		data.CanCheckout = !c.Empty()
	}
	s.Templates.Render(w, "cart.html", data)
}

// CartAdd handles POST /cart/add. It returns to the page named by "back".
func (s *Server) CartAdd(w http.ResponseWriter, r *http.Request) {
	back := SafeNext(r.FormValue("back"))
	id, err := strconv.ParseInt(r.FormValue("product_id"), 10, 64)
	if err != nil || id <= 0 {
		redirectErr(w, r, back, "invalid")
		return
	}
	p, err := store.GetProduct(r.Context(), s.DB, id)
	if err != nil || p == nil {
		redirectErr(w, r, back, "not_found")
		return
	}

	c, err := s.openCart(r)
	if err == nil {
		err = c.Add(r.Context(), id)
	}
	if errors.Is(err, cart.ErrTooLarge) {
		slog.Warn("cart full", "product", id, "error", err)
		redirectErr(w, r, back, "cart_full")
		return
	}
	if err != nil {
		slog.Error("failed to add to cart", "product", id, "error", err)
		redirectErr(w, r, back, "cart_failed")
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// CartUpdate handles POST /cart/{id}/{action} for the increment, decrement
// and remove buttons.
func (s *Server) CartUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		redirectErr(w, r, "/cart", "invalid")
		return
	}
	c, err := s.openCart(r)
	if err != nil {
		redirectErr(w, r, "/cart", "cart_failed")
		return
	}

	switch chi.URLParam(r, "action") {
	case "inc":
		err = c.Add(r.Context(), id)
	case "dec":
		err = c.Decrement(r.Context(), id)
	case "remove":
		err = c.Remove(r.Context(), id)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("failed to update cart", "product", id, "error", err)
		redirectErr(w, r, "/cart", "cart_failed")
		return
	}
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

// CartClear handles POST /cart/clear.
func (s *Server) CartClear(w http.ResponseWriter, r *http.Request) {
	c, err := s.openCart(r)
	if err == nil {
		err = c.Clear(r.Context())
	}
	if err != nil {
		redirectErr(w, r, "/cart", "cart_failed")
		return
	}
	redirectOK(w, r, "/cart", "cart_cleared")
}

// Checkout handles POST /cart/checkout. The cart is emptied only when the
// order was stored.
func (s *Server) Checkout(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	c, err := s.openCart(r)
	if err != nil {
		redirectErr(w, r, "/cart", "cart_failed")
		return
	}

	o, err := s.Orders.Checkout(r.Context(), claims.UserID, c, r.FormValue("comments"))
	if err != nil {
		if !errors.Is(err, model.ErrOrderInProgress) && !errors.Is(err, model.ErrValidation) {
			slog.Error("checkout failed", "user", claims.UserID, "error", err)
		}
		redirectErr(w, r, "/cart", errorCode(err))
		return
	}
	slog.Info("order placed", "user", claims.UserID, "order", o.ID)
	redirectOK(w, r, "/orders", "order_placed")
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err == nil && id <= 0 {
		err = errors.New("id must be positive")
	}
	return id, err
}
