package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Surfinbird-star/aas2/internal/auth"
	"github.com/Surfinbird-star/aas2/internal/db"
	"github.com/Surfinbird-star/aas2/internal/document"
	"github.com/Surfinbird-star/aas2/internal/model"
	"github.com/Surfinbird-star/aas2/internal/objstore"
	"github.com/Surfinbird-star/aas2/internal/order"
	"github.com/Surfinbird-star/aas2/internal/store"
)

const testJWTSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	db     *sql.DB
	gate   *auth.Gate
	admin  string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)

	docs, err := objstore.NewDiskBucket(t.TempDir(), "user_documents")
	require.NoError(t, err)
	images, err := objstore.NewDiskBucket(t.TempDir(), "product_images")
	require.NoError(t, err)

	gate := auth.NewGate(func(ctx context.Context, userID string) (bool, error) {
		return store.GetAdminFlag(ctx, database, userID)
	}, 16, time.Minute, nil)

	router := NewRouter(Deps{
		DB:        database,
		JWTSecret: testJWTSecret,
		Gate:      gate,
		Orders:    order.NewService(database, nil),
		Documents: document.NewService(database, docs, 0, nil),
		Images:    images,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	env := &testEnv{server: server, db: database, gate: gate}
	createUser(t, env, "admin@example.com", "password123", true)
	env.admin = login(t, env, "admin@example.com", "password123")
	return env
}

func createUser(t *testing.T, env *testEnv, email, password string, isAdmin bool) *model.Profile {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	p, err := store.CreateProfile(context.Background(), env.db, "", model.ProfileInput{
		FirstName: "Test", LastName: "User", Email: email,
	}, hash, isAdmin)
	require.NoError(t, err)
	return p
}

func login(t *testing.T, env *testEnv, email, password string) string {
	t.Helper()
	resp := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, env.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func (env *testEnv) status(t *testing.T, method, path, token string, body any) int {
	t.Helper()
	resp := env.do(t, method, path, token, body)
	resp.Body.Close()
	return resp.StatusCode
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	code := env.status(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	code = env.status(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@example.com"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRegisterSelf(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"first_name": "Анна",
		"last_name":  "Смирнова",
		"email":      "Anna@Example.com",
		"password":   "secret123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	session := decode[sessionResponse](t, resp)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "anna@example.com", session.Profile.Email)
	assert.False(t, session.Profile.IsAdmin)

	// The new session works.
	assert.Equal(t, http.StatusOK, env.status(t, http.MethodGet, "/api/profile", session.Token, nil))

	// Duplicate email.
	code := env.status(t, http.MethodPost, "/api/register", "", map[string]string{
		"first_name": "A", "last_name": "B", "email": "anna@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, code)

	// Missing fields are reported per field.
	resp = env.do(t, http.MethodPost, "/api/register", "", map[string]string{"email": "x@example.com"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorResponse](t, resp)
	fields := map[string]bool{}
	for _, f := range body.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["first_name"])
	assert.True(t, fields["last_name"])
	assert.True(t, fields["password"])
}

func TestRegisterWithIDRequiresAdmin(t *testing.T) {
	env := setupTestServer(t)
	createUser(t, env, "user@example.com", "password123", false)
	userToken := login(t, env, "user@example.com", "password123")

	req := map[string]string{
		"id":         "7f1b7c9e-0000-4000-8000-000000000001",
		"first_name": "Иван",
		"last_name":  "Петров",
		"email":      "ivan@example.com",
	}
	assert.Equal(t, http.StatusUnauthorized, env.status(t, http.MethodPost, "/api/register", "", req))
	assert.Equal(t, http.StatusForbidden, env.status(t, http.MethodPost, "/api/register", userToken, req))
	assert.Equal(t, http.StatusCreated, env.status(t, http.MethodPost, "/api/register", env.admin, req))

	req["phone"] = "+7 900"
	resp := env.do(t, http.MethodPost, "/api/register", env.admin, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[model.Profile](t, resp)
	assert.Equal(t, "+7 900", p.Phone)
}

func TestRegisterWithIDResetsPassword(t *testing.T) {
	env := setupTestServer(t)
	user := createUser(t, env, "user@example.com", "password123", false)

	resp := env.do(t, http.MethodPost, "/api/register", env.admin, map[string]string{
		"id":         user.ID,
		"first_name": "Test",
		"last_name":  "User",
		"email":      "user@example.com",
		"password":   "newpassword1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	login(t, env, "user@example.com", "newpassword1")
	assert.Equal(t, http.StatusUnauthorized, env.status(t, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "user@example.com", "password": "password123"}))
}

func TestRegisterWithIDRefreshesGate(t *testing.T) {
	env := setupTestServer(t)
	id := "7f1b7c9e-0000-4000-8000-000000000002"

	// Cache a missing-profile decision for the id before it exists.
	d := env.gate.Check(context.Background(), &auth.Claims{UserID: id})
	require.Equal(t, auth.ReasonProfileMissing, d.Reason)

	resp := env.do(t, http.MethodPost, "/api/register", env.admin, map[string]string{
		"id":         id,
		"first_name": "Иван",
		"last_name":  "Петров",
		"email":      "ivan@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	d = env.gate.Check(context.Background(), &auth.Claims{UserID: id})
	assert.Equal(t, auth.ReasonNotAdmin, d.Reason)
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, env.status(t, http.MethodGet, "/api/orders", "", nil))
	assert.Equal(t, http.StatusUnauthorized, env.status(t, http.MethodGet, "/api/admin/orders", "", nil))
	assert.Equal(t, http.StatusUnauthorized, env.status(t, http.MethodGet, "/api/orders", "garbage", nil))
	assert.Equal(t, http.StatusOK, env.status(t, http.MethodGet, "/api/categories", "", nil))
	assert.Equal(t, http.StatusOK, env.status(t, http.MethodGet, "/api/health", "", nil))
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := setupTestServer(t)
	u := createUser(t, env, "user@example.com", "password123", false)
	userToken := login(t, env, "user@example.com", "password123")

	assert.Equal(t, http.StatusForbidden, env.status(t, http.MethodGet, "/api/admin/orders", userToken, nil))
	assert.Equal(t, http.StatusForbidden, env.status(t, http.MethodPost, "/api/categories", userToken,
		map[string]string{"name": "Хлеб"}))

	// Promotion takes effect at once because the gate entry is dropped.
	isAdmin := true
	code := env.status(t, http.MethodPut, "/api/admin/users/"+u.ID, env.admin, updateUserRequest{
		ProfileInput: model.ProfileInput{FirstName: "Test", LastName: "User", Email: "user@example.com"},
		IsAdmin:      &isAdmin,
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, http.StatusOK, env.status(t, http.MethodGet, "/api/admin/orders", userToken, nil))
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)

	assert.Equal(t, http.StatusOK, env.status(t, http.MethodPost, "/api/auth/logout", env.admin, nil))
	assert.Equal(t, http.StatusUnauthorized, env.status(t, http.MethodGet, "/api/profile", env.admin, nil))
}

func seedCatalog(t *testing.T, env *testEnv) int64 {
	t.Helper()
	resp := env.do(t, http.MethodPost, "/api/categories", env.admin, map[string]string{"name": "Овощи"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cat := decode[model.Category](t, resp)

	resp = env.do(t, http.MethodPost, "/api/products", env.admin, map[string]any{
		"name": "Картофель", "unit": "кг", "category_id": cat.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	p := decode[model.Product](t, resp)

	// The category is now in use.
	assert.Equal(t, http.StatusConflict,
		env.status(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d", cat.ID), env.admin, nil))
	return p.ID
}

func TestOrderFlow(t *testing.T) {
	env := setupTestServer(t)
	productID := seedCatalog(t, env)
	createUser(t, env, "user@example.com", "password123", false)
	userToken := login(t, env, "user@example.com", "password123")

	place := placeOrderRequest{Items: []model.OrderLine{{ProductID: productID, Quantity: 2}}}
	resp := env.do(t, http.MethodPost, "/api/orders", userToken, place)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	o := decode[model.Order](t, resp)
	assert.Equal(t, model.StatusProcessing, o.Status)
	require.Len(t, o.Items, 1)

	assert.Equal(t, http.StatusConflict, env.status(t, http.MethodPost, "/api/orders", userToken, place))

	resp = env.do(t, http.MethodGet, "/api/orders/can-checkout", userToken, nil)
	assert.Equal(t, map[string]bool{"can_checkout": false}, decode[map[string]bool](t, resp))

	// Admin edits the quantity and completes the order.
	resp = env.do(t, http.MethodPut, fmt.Sprintf("/api/admin/orders/%d/items", o.ID), env.admin,
		quantitiesRequest{Quantities: map[int64]int{o.Items[0].ID: 5}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[model.Order](t, resp)
	assert.Equal(t, 5, updated.ItemCount())

	code := env.status(t, http.MethodPut, fmt.Sprintf("/api/admin/orders/%d/status", o.ID), env.admin,
		statusRequest{Status: "completed"})
	require.Equal(t, http.StatusOK, code)

	code = env.status(t, http.MethodPut, fmt.Sprintf("/api/admin/orders/%d/status", o.ID), env.admin,
		statusRequest{Status: "confirmed"})
	assert.Equal(t, http.StatusBadRequest, code)

	resp = env.do(t, http.MethodGet, "/api/admin/orders?status=completed&sort=asc", env.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Order](t, resp), 1)

	assert.Equal(t, http.StatusBadRequest, env.status(t, http.MethodGet, "/api/admin/orders?status=bogus", env.admin, nil))

	resp = env.do(t, http.MethodGet, "/api/admin/orders/export?status=completed", env.admin, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "utf-8''")
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")

	// Another customer cannot see the order.
	createUser(t, env, "other@example.com", "password123", false)
	otherToken := login(t, env, "other@example.com", "password123")
	assert.Equal(t, http.StatusNotFound, env.status(t, http.MethodGet, fmt.Sprintf("/api/orders/%d", o.ID), otherToken, nil))
	assert.Equal(t, http.StatusOK, env.status(t, http.MethodGet, fmt.Sprintf("/api/orders/%d", o.ID), userToken, nil))
}

func uploadRequest(t *testing.T, env *testEnv, token, filename, contentType string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}
	h["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestDocumentUploadDownloadDelete(t *testing.T) {
	env := setupTestServer(t)
	createUser(t, env, "user@example.com", "password123", false)
	token := login(t, env, "user@example.com", "password123")

	resp := uploadRequest(t, env, token, "паспорт.pdf", "application/pdf", []byte("%PDF-1.4 test"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc := decode[model.Document](t, resp)
	assert.Equal(t, "паспорт.pdf", doc.Filename)

	resp = uploadRequest(t, env, token, "second.pdf", "application/pdf", []byte("%PDF"))
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = uploadRequest(t, env, token, "virus.exe", "application/octet-stream", []byte("MZ"))
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/documents/download?id=%d", doc.ID), token, nil)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "%PDF-1.4 test", string(data))
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, "13", resp.Header.Get("Content-Length"))
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Disposition"), "attachment;"))

	assert.Equal(t, http.StatusBadRequest, env.status(t, http.MethodGet, "/api/documents/download", token, nil))
	assert.Equal(t, http.StatusBadRequest, env.status(t, http.MethodGet, "/api/documents/download?id=abc", token, nil))
	assert.Equal(t, http.StatusNotFound, env.status(t, http.MethodGet, "/api/documents/download?id=9999", token, nil))

	// Admins can read any user's document.
	assert.Equal(t, http.StatusOK,
		env.status(t, http.MethodGet, fmt.Sprintf("/api/documents/download?id=%d", doc.ID), env.admin, nil))

	path := fmt.Sprintf("/api/documents/%d", doc.ID)
	assert.Equal(t, http.StatusOK, env.status(t, http.MethodDelete, path, token, nil))
	assert.Equal(t, http.StatusOK, env.status(t, http.MethodDelete, path, token, nil), "delete is idempotent")
	assert.Equal(t, http.StatusNotFound,
		env.status(t, http.MethodGet, fmt.Sprintf("/api/documents/download?id=%d", doc.ID), token, nil))
}

func TestUploadForAnotherUserRequiresAdmin(t *testing.T) {
	env := setupTestServer(t)
	other := createUser(t, env, "other@example.com", "password123", false)
	createUser(t, env, "user@example.com", "password123", false)
	token := login(t, env, "user@example.com", "password123")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("user_id", other.ID))
	part, err := mw.CreateFormFile("file", "scan.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/upload", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
