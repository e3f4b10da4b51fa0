// Package order implements order submission, the status lifecycle, the admin
// order console and its spreadsheet export.
package order

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Surfinbird-star/aas2/internal/cart"
	"github.com/Surfinbird-star/aas2/internal/metrics"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/store"
)

// Sort orders for the console.
const (
	SortNewest = "desc"
	SortOldest = "asc"
)

// itemFetchLimit bounds concurrent line item queries in the console.
const itemFetchLimit = 4

// recentOrders is the number of orders shown on the dashboard.
const recentOrders = 5

// ConsoleFilter narrows the admin order console.
type ConsoleFilter struct {
	Status model.OrderStatus
	Sort   string
	Search string
}

// ParseConsoleFilter reads a filter from raw query values. An empty or "all"
// status means no status filter.
func ParseConsoleFilter(status, sort, search string) (ConsoleFilter, error) {
	f := ConsoleFilter{Sort: SortNewest, Search: strings.TrimSpace(search)}
	if status != "" && status != "all" {
		st, err := model.ParseOrderStatus(status)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	switch sort {
	case "", SortNewest:
	case SortOldest:
		f.Sort = SortOldest
	default:
		return f, model.NewValidationError("sort", "sort must be asc or desc")
	}
	return f, nil
}

// Service coordinates order reads and writes.
type Service struct {
	db  *sql.DB
	log *slog.Logger
}

// NewService creates an order service.
func NewService(db *sql.DB, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{db: db, log: log}
}

// normalizeLines merges duplicate products and validates quantities.
func normalizeLines(lines []model.OrderLine) ([]model.OrderLine, error) {
	if len(lines) == 0 {
		return nil, model.ErrEmptyOrder
	}

	verr := &model.ValidationError{}
	merged := make([]model.OrderLine, 0, len(lines))
	index := make(map[int64]int, len(lines))
	for _, l := range lines {
		if l.ProductID <= 0 {
			verr.Add("product_id", fmt.Sprintf("invalid product %d", l.ProductID))
			continue
		}
		if l.Quantity < 1 {
			verr.Add("quantity", fmt.Sprintf("product %d: quantity must be positive", l.ProductID))
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	if verr.HasErrors() {
		return nil, verr
	}
	return merged, nil
}

// Place submits an order for the user. All lines are validated and every
// product is checked before anything is written; the header and its items
// are then stored in one transaction. Contact details are copied from the
// user's profile.
func (s *Service) Place(ctx context.Context, userID string, lines []model.OrderLine, comments string) (*model.Order, error) {
	lines, err := normalizeLines(lines)
	if err != nil {
		return nil, err
	}

	profile, err := store.GetProfile(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile %s: %w", userID, model.ErrNotFound)
	}

	verr := &model.ValidationError{}
	for _, l := range lines {
		p, err := store.GetProduct(ctx, s.db, l.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			verr.Add("product_id", fmt.Sprintf("unknown product %d", l.ProductID))
		}
	}
	if verr.HasErrors() {
		return nil, verr
	}

	o, err := store.CreateOrder(ctx, s.db, userID, model.OrderDetails{
		Phone:    profile.Phone,
		Address:  profile.Address,
		Comments: strings.TrimSpace(comments),
	}, lines)
	if err != nil {
		return nil, err
	}

	metrics.OrdersPlaced.Inc()
	s.log.Info("order placed", "order", o.ID, "user", userID, "items", len(o.Items))
	return o, nil
}

// Checkout places an order from the cart and empties the cart. The cart is
// left untouched when the order is refused.
func (s *Service) Checkout(ctx context.Context, userID string, c *cart.Cart, comments string) (*model.Order, error) {
	if c.Empty() {
		return nil, model.ErrEmptyOrder
	}
	o, err := s.Place(ctx, userID, c.Lines(), comments)
	if err != nil {
		return nil, err
	}
	if err := c.Clear(ctx); err != nil {
		// The order is stored; only the cart mirror is stale.
		s.log.Warn("clearing cart after checkout", "user", userID, "error", err)
	}
	return o, nil
}

// CanCheckout reports whether the user may submit a new order.
func (s *Service) CanCheckout(ctx context.Context, userID string) (bool, error) {
	busy, err := store.HasProcessingOrder(ctx, s.db, userID)
	if err != nil {
		return false, err
	}
	return !busy, nil
}

// SetStatus moves an order to a new status.
func (s *Service) SetStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	if !status.Valid() {
		return model.NewValidationError("status", "unknown status "+string(status))
	}
	if err := store.SetOrderStatus(ctx, s.db, orderID, status); err != nil {
		return err
	}
	metrics.OrderStatusChanges.WithLabelValues(string(status)).Inc()
	s.log.Info("order status changed", "order", orderID, "status", status)
	return nil
}

// SaveQuantities stores edited line item quantities, keyed by item ID.
func (s *Service) SaveQuantities(ctx context.Context, orderID int64, quantities map[int64]int) error {
	if len(quantities) == 0 {
		return nil
	}
	if err := store.UpdateOrderItemQuantities(ctx, s.db, orderID, quantities); err != nil {
		return err
	}
	s.log.Info("order quantities saved", "order", orderID, "items", len(quantities))
	return nil
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, orderID int64) (*model.Order, error) {
	o, err := store.GetOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("order %d: %w", orderID, model.ErrNotFound)
	}
	return o, nil
}

// ForUser returns the user's orders, newest first, with items.
func (s *Service) ForUser(ctx context.Context, userID string) ([]model.Order, error) {
	orders, err := store.ListOrders(ctx, s.db, store.OrderFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// Console returns the orders matching the filter with their items. Search
// matches the order ID, customer name or email, ignoring case.
func (s *Service) Console(ctx context.Context, f ConsoleFilter) ([]model.Order, error) {
	orders, err := store.ListOrders(ctx, s.db, store.OrderFilter{
		Status:    f.Status,
		Ascending: f.Sort == SortOldest,
	})
	if err != nil {
		return nil, err
	}

	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		matched := orders[:0]
		for _, o := range orders {
			if matches(o, q) {
				matched = append(matched, o)
			}
		}
		orders = matched
	}

	if err := s.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func matches(o model.Order, q string) bool {
	return strings.Contains(strconv.FormatInt(o.ID, 10), q) ||
		strings.Contains(strings.ToLower(o.CustomerName), q) ||
		strings.Contains(strings.ToLower(o.CustomerEmail), q)
}

func (s *Service) loadItems(ctx context.Context, orders []model.Order) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(itemFetchLimit)
	for i := range orders {
		g.Go(func() error {
			items, err := store.ListOrderItems(gctx, s.db, orders[i].ID)
			if err != nil {
				return fmt.Errorf("order %d: %w", orders[i].ID, err)
			}
			orders[i].Items = items
			return nil
		})
	}
	return g.Wait()
}

// Stats returns the dashboard counters.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	st, err := store.GetStats(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if len(st.RecentOrders) > recentOrders {
		st.RecentOrders = st.RecentOrders[:recentOrders]
	}
	if err := s.loadItems(ctx, st.RecentOrders); err != nil {
		return nil, err
	}
	return st, nil
}
