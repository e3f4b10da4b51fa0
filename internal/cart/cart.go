// Package cart keeps a per-browser shopping cart mirrored to durable storage.
package cart

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Surfinbird-star/aas2/internal/model"
)

// ErrCorrupt is returned by stores whose persisted content cannot be decoded.
var ErrCorrupt = errors.New("cart: corrupt stored cart")

// ErrTooLarge is returned by CookieStore when the encoded cart would not fit
// in a browser cookie.
var ErrTooLarge = errors.New("cart: too large for cookie storage")

// Store persists a cart between requests.
type Store interface {
	Load(ctx context.Context) (map[int64]int, error)
	Save(ctx context.Context, items map[int64]int) error
	Clear(ctx context.Context) error
}

// Cart maps product IDs to positive quantities. Every mutation is written
// through to the store; when the write fails the in-memory state is left
// unchanged, so memory and store agree after every completed operation.
type Cart struct {
	items map[int64]int
	store Store
}

// Open hydrates a cart from its store. A corrupt stored cart is discarded.
func Open(ctx context.Context, store Store) (*Cart, error) {
	items, err := store.Load(ctx)
	if errors.Is(err, ErrCorrupt) {
		if err := store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("resetting corrupt cart: %w", err)
		}
		items = nil
	} else if err != nil {
		return nil, fmt.Errorf("loading cart: %w", err)
	}

	clean := make(map[int64]int, len(items))
	for id, qty := range items {
		if id > 0 && qty > 0 {
			clean[id] = qty
		}
	}
	return &Cart{items: clean, store: store}, nil
}

func (c *Cart) commit(ctx context.Context, next map[int64]int) error {
	if len(next) == 0 {
		if err := c.store.Clear(ctx); err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}
	} else if err := c.store.Save(ctx, next); err != nil {
		return fmt.Errorf("saving cart: %w", err)
	}
	c.items = next
	return nil
}

// Add inserts a product with quantity 1, or increments it when present.
func (c *Cart) Add(ctx context.Context, productID int64) error {
	if productID <= 0 {
		return model.NewValidationError("product_id", "invalid product")
	}
	next := maps.Clone(c.items)
	next[productID]++
	return c.commit(ctx, next)
}

// Decrement lowers a product's quantity by one, removing it below 1.
func (c *Cart) Decrement(ctx context.Context, productID int64) error {
	if _, ok := c.items[productID]; !ok {
		return nil
	}
	next := maps.Clone(c.items)
	next[productID]--
	if next[productID] < 1 {
		delete(next, productID)
	}
	return c.commit(ctx, next)
}

// SetQuantity sets a product's quantity. Quantities below 1 remove it.
func (c *Cart) SetQuantity(ctx context.Context, productID int64, qty int) error {
	if productID <= 0 {
		return model.NewValidationError("product_id", "invalid product")
	}
	next := maps.Clone(c.items)
	if qty < 1 {
		delete(next, productID)
	} else {
		next[productID] = qty
	}
	return c.commit(ctx, next)
}

// Remove deletes a product from the cart.
func (c *Cart) Remove(ctx context.Context, productID int64) error {
	if _, ok := c.items[productID]; !ok {
		return nil
	}
	next := maps.Clone(c.items)
	delete(next, productID)
	return c.commit(ctx, next)
}

// Clear empties the cart and its store.
func (c *Cart) Clear(ctx context.Context) error {
	return c.commit(ctx, map[int64]int{})
}

// Quantity returns the quantity of a product, 0 when absent.
func (c *Cart) Quantity(productID int64) int {
	return c.items[productID]
}

// Items returns a copy of the cart contents.
func (c *Cart) Items() map[int64]int {
	return maps.Clone(c.items)
}

// Lines returns the cart as order lines sorted by product ID.
func (c *Cart) Lines() []model.OrderLine {
	ids := slices.Sorted(maps.Keys(c.items))
	lines := make([]model.OrderLine, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, model.OrderLine{ProductID: id, Quantity: c.items[id]})
	}
	return lines
}

// Len returns the number of distinct products.
func (c *Cart) Len() int { return len(c.items) }

// Units returns the total quantity across products.
func (c *Cart) Units() int {
	n := 0
	for _, q := range c.items {
		n += q
	}
	return n
}

// Empty reports whether the cart has no products.
func (c *Cart) Empty() bool { return len(c.items) == 0 }
