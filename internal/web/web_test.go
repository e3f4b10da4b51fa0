package web

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/cart"
	"github.com/Surfinbird-star/aas2/internal/db"
	"github.com/Surfinbird-star/aas2/internal/document"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/objstore"
	"github.com/Surfinbird-star/aas2/internal/order"
	"github.com/Surfinbird-star/aas2/internal/store"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	server  *httptest.Server
	db      *sql.DB
	product *model.Product
}

func setupTestServer(t *testing.T, lookup auth.AdminLookup) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)

	docs, err := objstore.NewDiskBucket(t.TempDir(), "user_documents")
	require.NoError(t, err)
	images, err := objstore.NewDiskBucket(t.TempDir(), "product_images")
	require.NoError(t, err)

	if lookup == nil {
		lookup = func(ctx context.Context, userID string) (bool, error) {
			return store.GetAdminFlag(ctx, database, userID)
		}
	}

	s := &Server{
		DB:         database,
		JWTSecret:  testJWTSecret,
		SessionTTL: time.Hour,
		Gate:       auth.NewGate(lookup, 16, time.Minute, nil),
		Orders:     order.NewService(database, nil),
		Documents:  document.NewService(database, docs, 0, nil),
		Carts:      &cart.CookieProvider{Name: "cart", MaxAge: time.Hour},
		Images:     images,
	}
	router, err := NewRouter(s, 0)
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	ctx := context.Background()
	cat, err := store.CreateCategory(ctx, database, "Молочные продукты")
	require.NoError(t, err)
	p, err := store.CreateProduct(ctx, database, model.ProductInput{
		Name: "Молоко", Unit: "л", CategoryID: cat.ID,
	})
	require.NoError(t, err)

	env := &testEnv{server: server, db: database, product: p}
	env.createUser(t, "admin@example.com", true)
	env.createUser(t, "user@example.com", false)
	return env
}

func (env *testEnv) createUser(t *testing.T, email string, isAdmin bool) *model.Profile {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)
	p, err := store.CreateProfile(context.Background(), env.db, "", model.ProfileInput{
		FirstName: "Иван", LastName: "Петров", Email: email,
	}, hash, isAdmin)
	require.NoError(t, err)
	return p
}

// browser returns a client that keeps cookies and does not follow redirects.
func (env *testEnv) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (env *testEnv) get(t *testing.T, c *http.Client, path string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(env.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (env *testEnv) post(t *testing.T, c *http.Client, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(env.server.URL+path, form)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func (env *testEnv) login(t *testing.T, c *http.Client, email, next string) *http.Response {
	t.Helper()
	return env.post(t, c, "/login", url.Values{
		"email": {email}, "password": {"password123"}, "next": {next},
	})
}

func (env *testEnv) sessionCookie(t *testing.T, c *http.Client) *http.Cookie {
	t.Helper()
	u, err := url.Parse(env.server.URL)
	require.NoError(t, err)
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == tokenCookie {
			return ck
		}
	}
	return nil
}

func TestLoadTemplates(t *testing.T) {
	ts, err := LoadTemplates()
	require.NoError(t, err)
	assert.Len(t, ts.templates, 12)
}

func TestProtectedPageRedirectsToLogin(t *testing.T) {
	env := setupTestServer(t, nil)
	c := env.browser(t)

	resp, _ := env.get(t, c, "/orders")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Forders", resp.Header.Get("Location"))

	resp, body := env.get(t, c, "/login?next=%2Forders")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `name="next" value="/orders"`)

	resp = env.login(t, c, "user@example.com", "/orders")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/orders", resp.Header.Get("Location"))
	require.NotNil(t, env.sessionCookie(t, c))

	resp, body = env.get(t, c, "/orders")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Мои заказы")
}

func TestLoginRejectsUnsafeNext(t *testing.T) {
	env := setupTestServer(t, nil)

	for _, next := range []string{"//evil.example.com", "https://evil.example.com", "/logout", "/login"} {
		c := env.browser(t)
		resp := env.login(t, c, "user@example.com", next)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, next)
		assert.Equal(t, "/", resp.Header.Get("Location"), next)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := setupTestServer(t, nil)
	c := env.browser(t)

	resp := env.post(t, c, "/login", url.Values{"email": {"user@example.com"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Nil(t, env.sessionCookie(t, c))
}

func TestRegisterPage(t *testing.T) {
	env := setupTestServer(t, nil)
	c := env.browser(t)

	resp := env.post(t, c, "/register", url.Values{"email": {"new@example.com"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.post(t, c, "/register", url.Values{
		"first_name": {"Анна"}, "last_name": {"Смирнова"},
		"email": {"user@example.com"}, "password": {"password123"},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.post(t, c, "/register", url.Values{
		"first_name": {"Анна"}, "last_name": {"Смирнова"},
		"email": {"new@example.com"}, "password": {"password123"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?ok=registered", resp.Header.Get("Location"))
	assert.NotNil(t, env.sessionCookie(t, c))
}

func TestNonAdminGetsForbiddenPage(t *testing.T) {
	env := setupTestServer(t, nil)
	c := env.browser(t)
	env.login(t, c, "user@example.com", "")

	resp, body := env.get(t, c, "/admin/orders")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "только администраторам")
	assert.NotNil(t, env.sessionCookie(t, c))

	resp, _ = env.get(t, c, "/admin/")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminPages(t *testing.T) {
	env := setupTestServer(t, nil)
	c := env.browser(t)
	env.login(t, c, "admin@example.com", "")

	for _, path := range []string{"/admin/", "/admin/orders", "/admin/products", "/admin/categories", "/admin/users"} {
		resp, body := env.get(t, c, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, body, "Администрирование", path)
	}
}

func TestAdminLookupFailureDropsSession(t *testing.T) {
	env := setupTestServer(t, func(context.Context, string) (bool, error) {
		return false, errors.New("database is down")
	})
	c := env.browser(t)
	env.login(t, c, "admin@example.com", "")
	require.NotNil(t, env.sessionCookie(t, c))

	resp, _ := env.get(t, c, "/admin/orders")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?next=%2Fadmin%2Forders", resp.Header.Get("Location"))
	assert.Nil(t, env.sessionCookie(t, c))
}

func TestLogoutRevokesSession(t *testing.T) {
	env := setupTestServer(t, nil)
	c := env.browser(t)
	env.login(t, c, "user@example.com", "")
	token := env.sessionCookie(t, c)
	require.NotNil(t, token)

	resp := env.post(t, c, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Nil(t, env.sessionCookie(t, c))

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/orders", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: tokenCookie, Value: token.Value})
	resp, err = (&http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestCartAndCheckout(t *testing.T) {
	env := setupTestServer(t, nil)
	c := env.browser(t)
	id := url.Values{"product_id": {itoa(env.product.ID)}, "back": {"/"}}

	resp := env.post(t, c, "/cart/add", id)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	env.post(t, c, "/cart/add", id)

	_, body := env.get(t, c, "/cart")
	assert.Contains(t, body, "Молоко")
	assert.Contains(t, body, "2 л")

	env.post(t, c, "/cart/"+itoa(env.product.ID)+"/dec", nil)
	_, body = env.get(t, c, "/cart")
	assert.Contains(t, body, "1 л")

	// Checkout needs a session.
	resp = env.post(t, c, "/cart/checkout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/login"))

	env.login(t, c, "user@example.com", "/cart")
	resp = env.post(t, c, "/cart/checkout", url.Values{"comments": {"после обеда"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/orders?ok=order_placed", resp.Header.Get("Location"))

	_, body = env.get(t, c, "/orders")
	assert.Contains(t, body, "Молоко")
	assert.Contains(t, body, "В обработке")

	_, body = env.get(t, c, "/cart")
	assert.Contains(t, body, "Корзина пуста")

	// A second order waits until the first leaves processing; the cart is kept.
	env.post(t, c, "/cart/add", id)
	resp = env.post(t, c, "/cart/checkout", nil)
	assert.Equal(t, "/cart?err=order_processing", resp.Header.Get("Location"))

	_, body = env.get(t, c, "/cart")
	assert.Contains(t, body, "Молоко")
	assert.Contains(t, body, "disabled")

	env.post(t, c, "/cart/clear", nil)
	_, body = env.get(t, c, "/cart")
	assert.Contains(t, body, "Корзина пуста")
}

func TestAdminOrderConsole(t *testing.T) {
	env := setupTestServer(t, nil)
	ctx := context.Background()

	u, err := store.GetProfileByEmail(ctx, env.db, "user@example.com")
	require.NoError(t, err)
	o, err := order.NewService(env.db, nil).Place(ctx, u.ID, []model.OrderLine{{ProductID: env.product.ID, Quantity: 2}}, "")
	require.NoError(t, err)

	c := env.browser(t)
	env.login(t, c, "admin@example.com", "")

	_, body := env.get(t, c, "/admin/orders?status=processing&q=user%40example")
	assert.Contains(t, body, "Заказ №"+itoa(o.ID))

	_, body = env.get(t, c, "/admin/orders?status=completed")
	assert.Contains(t, body, "Заказы не найдены")

	items, err := store.ListOrderItems(ctx, env.db, o.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	back := "/admin/orders?status=processing"
	resp := env.post(t, c, "/admin/orders/"+itoa(o.ID)+"/items", url.Values{
		"back": {back}, "qty_" + itoa(items[0].ID): {"5"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/orders?ok=items_saved&status=processing", resp.Header.Get("Location"))

	resp = env.post(t, c, "/admin/orders/"+itoa(o.ID)+"/items", url.Values{"qty_" + itoa(items[0].ID): {"0"}})
	assert.Equal(t, "/admin/orders?err=invalid", resp.Header.Get("Location"))

	resp = env.post(t, c, "/admin/orders/"+itoa(o.ID)+"/status", url.Values{"status": {"completed"}})
	assert.Equal(t, "/admin/orders?ok=status_saved", resp.Header.Get("Location"))

	resp = env.post(t, c, "/admin/orders/"+itoa(o.ID)+"/status", url.Values{"status": {"confirmed"}})
	assert.Equal(t, "/admin/orders?err=transition", resp.Header.Get("Location"))

	got, err := store.GetOrder(ctx, env.db, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	resp, _ = env.get(t, c, "/admin/orders/export?status=completed")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
}

func TestDocumentPages(t *testing.T) {
	env := setupTestServer(t, nil)
	c := env.browser(t)
	env.login(t, c, "user@example.com", "")

	upload := func() *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "паспорт.pdf")
		require.NoError(t, err)
		_, err = fw.Write([]byte("%PDF-1.4 test"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		resp, err := c.Post(env.server.URL+"/documents", mw.FormDataContentType(), &buf)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	resp := upload()
	assert.Equal(t, "/documents?ok=doc_uploaded", resp.Header.Get("Location"))
	resp = upload()
	assert.Equal(t, "/documents?err=doc_exists", resp.Header.Get("Location"))

	_, body := env.get(t, c, "/documents")
	assert.Contains(t, body, "паспорт.pdf")

	u, err := store.GetProfileByEmail(context.Background(), env.db, "user@example.com")
	require.NoError(t, err)
	docs, err := store.ListDocumentsByUser(context.Background(), env.db, u.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	// Another customer cannot delete it.
	other := env.browser(t)
	env.createUser(t, "other@example.com", false)
	env.login(t, other, "other@example.com", "")
	resp = env.post(t, other, "/documents/"+itoa(docs[0].ID)+"/delete", nil)
	assert.Equal(t, "/documents?err=forbidden", resp.Header.Get("Location"))

	resp = env.post(t, c, "/documents/"+itoa(docs[0].ID)+"/delete", nil)
	assert.Equal(t, "/documents?ok=doc_deleted", resp.Header.Get("Location"))
	// Deleting again still succeeds.
	resp = env.post(t, c, "/documents/"+itoa(docs[0].ID)+"/delete", nil)
	assert.Equal(t, "/documents?ok=doc_deleted", resp.Header.Get("Location"))
}

func TestAdminUserUpdate(t *testing.T) {
	env := setupTestServer(t, nil)
	ctx := context.Background()
	c := env.browser(t)
	env.login(t, c, "admin@example.com", "")

	admin, err := store.GetProfileByEmail(ctx, env.db, "admin@example.com")
	require.NoError(t, err)
	u, err := store.GetProfileByEmail(ctx, env.db, "user@example.com")
	require.NoError(t, err)

	form := url.Values{
		"first_name": {"Иван"}, "last_name": {"Петров"}, "email": {"user@example.com"},
		"phone": {"+7 900 000-00-00"}, "is_admin": {"on"},
	}
	resp := env.post(t, c, "/admin/users/"+u.ID, form)
	assert.Equal(t, "/admin/users?ok=user_saved", resp.Header.Get("Location"))

	isAdmin, err := store.GetAdminFlag(ctx, env.db, u.ID)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	// Dropping your own admin flag is refused.
	form.Set("email", "admin@example.com")
	form.Del("is_admin")
	resp = env.post(t, c, "/admin/users/"+admin.ID, form)
	assert.Equal(t, "/admin/users?err=self_admin", resp.Header.Get("Location"))
}

func TestCategoryDeleteRefusedWhenInUse(t *testing.T) {
	env := setupTestServer(t, nil)
	c := env.browser(t)
	env.login(t, c, "admin@example.com", "")

	resp := env.post(t, c, "/admin/categories/"+itoa(env.product.CategoryID)+"/delete", nil)
	assert.Equal(t, "/admin/categories?err=category_in_use", resp.Header.Get("Location"))

	resp = env.post(t, c, "/admin/categories", url.Values{"name": {"Овощи"}})
	assert.Equal(t, "/admin/categories?ok=category_saved", resp.Header.Get("Location"))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
