package cart

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Surfinbird-star/aas2/internal/model"
)

func openMemory(t *testing.T) (*Cart, *MemoryStore) {
	t.Helper()
	store := &MemoryStore{}
	c, err := Open(context.Background(), store)
	require.NoError(t, err)
	return c, store
}

func assertMirrored(t *testing.T, c *Cart, store Store) {
	t.Helper()
	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	if c.Empty() {
		assert.Empty(t, stored)
		return
	}
	assert.Equal(t, c.Items(), stored)
}

func TestCartAddAndDecrement(t *testing.T) {
	ctx := context.Background()
	c, store := openMemory(t)

	require.NoError(t, c.Add(ctx, 1))
	require.NoError(t, c.Add(ctx, 1))
	require.NoError(t, c.Add(ctx, 2))
	assert.Equal(t, 2, c.Quantity(1))
	assert.Equal(t, 1, c.Quantity(2))
	assert.Equal(t, 3, c.Units())
	assertMirrored(t, c, store)

	require.NoError(t, c.Decrement(ctx, 2))
	assert.Equal(t, 0, c.Quantity(2))
	_, present := c.Items()[2]
	assert.False(t, present, "decrement below 1 removes the entry")
	assertMirrored(t, c, store)

	// Decrementing an absent product does nothing.
	require.NoError(t, c.Decrement(ctx, 99))
	assert.Equal(t, 1, c.Len())
}

func TestCartSetQuantityAndRemove(t *testing.T) {
	ctx := context.Background()
	c, store := openMemory(t)

	require.NoError(t, c.SetQuantity(ctx, 5, 4))
	assert.Equal(t, 4, c.Quantity(5))

	require.NoError(t, c.SetQuantity(ctx, 5, 0))
	assert.True(t, c.Empty())

	require.NoError(t, c.SetQuantity(ctx, 6, -3))
	assert.True(t, c.Empty(), "negative quantities are never stored")

	require.NoError(t, c.Add(ctx, 7))
	require.NoError(t, c.Remove(ctx, 7))
	assert.True(t, c.Empty())
	assertMirrored(t, c, store)

	err := c.Add(ctx, 0)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCartClear(t *testing.T) {
	ctx := context.Background()
	c, store := openMemory(t)

	require.NoError(t, c.Add(ctx, 1))
	require.NoError(t, c.Add(ctx, 2))
	require.NoError(t, c.Clear(ctx))

	assert.True(t, c.Empty())
	assertMirrored(t, c, store)

	reopened, err := Open(ctx, store)
	require.NoError(t, err)
	assert.True(t, reopened.Empty())
}

func TestCartHydratesFromStore(t *testing.T) {
	ctx := context.Background()
	store := &MemoryStore{}
	require.NoError(t, store.Save(ctx, map[int64]int{3: 2, 4: 0, 5: -1}))

	c, err := Open(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{3: 2}, c.Items())
	assert.Equal(t, []model.OrderLine{{ProductID: 3, Quantity: 2}}, c.Lines())
}

func TestCartFailedWriteLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	c, store := openMemory(t)
	require.NoError(t, c.Add(ctx, 1))

	store.Err = errors.New("disk full")
	err := c.Add(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, 1, c.Quantity(1))

	err = c.Clear(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, c.Quantity(1))

	store.Err = nil
	assertMirrored(t, c, store)
}

func TestCartLinesSorted(t *testing.T) {
	ctx := context.Background()
	c, _ := openMemory(t)
	for _, id := range []int64{9, 2, 5} {
		require.NoError(t, c.Add(ctx, id))
	}

	lines := c.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, int64(2), lines[0].ProductID)
	assert.Equal(t, int64(9), lines[2].ProductID)
}

func TestCookieStorePersistsAcrossRequests(t *testing.T) {
	ctx := context.Background()
	provider := &CookieProvider{Name: "cart", MaxAge: 3600}

	// First request adds items.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/cart", nil)
	c, err := Open(ctx, provider.For(rec, req))
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, 10))
	require.NoError(t, c.Add(ctx, 10))
	require.NoError(t, c.Add(ctx, 11))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	last := cookies[len(cookies)-1]

	// A later request from the same browser sees the same cart.
	req2 := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req2.AddCookie(last)
	c2, err := Open(ctx, provider.For(httptest.NewRecorder(), req2))
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{10: 2, 11: 1}, c2.Items())
}

func TestCookieStoreDiscardsCorruptCart(t *testing.T) {
	ctx := context.Background()
	provider := &CookieProvider{Name: "cart", MaxAge: 3600}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(&http.Cookie{Name: "cart", Value: "!!not-base64!!"})

	c, err := Open(ctx, provider.For(rec, req))
	require.NoError(t, err)
	assert.True(t, c.Empty())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestCookieStoreRefusesOversizedCart(t *testing.T) {
	ctx := context.Background()
	provider := &CookieProvider{Name: "cart", MaxAge: 3600}

	rec := httptest.NewRecorder()
	c, err := Open(ctx, provider.For(rec, httptest.NewRequest(http.MethodPost, "/cart", nil)))
	require.NoError(t, err)

	added := 0
	for id := int64(1_000_000); added < 1000; id++ {
		if err = c.Add(ctx, id); err != nil {
			break
		}
		added++
	}
	require.ErrorIs(t, err, ErrTooLarge)
	assert.Greater(t, added, 0)
	assert.Len(t, c.Items(), added, "failed save leaves the cart unchanged")

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.LessOrEqual(t, len(cookies[len(cookies)-1].Value), maxCookieValue)
}
