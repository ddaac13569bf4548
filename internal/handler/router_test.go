package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"petvet/internal/docstore"
	"petvet/internal/middleware"
	"petvet/internal/repository"
	"petvet/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingStore struct {
	docstore.Store
}

func (failingStore) Ping(ctx context.Context) error { return errors.New("unreachable") }

func newTestRouter(t *testing.T, store docstore.Store) *gin.Engine {
	t.Helper()
	log, _ := test.NewNullLogger()
	return NewRouter(RouterConfig{
		Store:       store,
		JWT:         utils.NewJWTUtil("test-secret", time.Hour),
		AuthLimiter: middleware.NewRateLimiter(1000, 1000),
		Log:         log,
		FrontendURL: "*",
		Version:     "test",
	})
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func register(t *testing.T, r http.Handler, email string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Ana", "email": email, "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func TestSystemRoutes(t *testing.T) {
	r := newTestRouter(t, docstore.NewMemoryStore(repository.StoreOptions()))

	w := doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = doJSON(t, r, http.MethodGet, "/api", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "test", decode(t, w)["version"])

	w = doJSON(t, r, http.MethodGet, "/api/nothing?x=1", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, "GET", body["method"])
	assert.Equal(t, "/api/nothing?x=1", body["url"])

	w = doJSON(t, r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth_StoreDown(t *testing.T) {
	r := newTestRouter(t, failingStore{Store: docstore.NewMemoryStore(docstore.Options{})})

	w := doJSON(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", decode(t, w)["store"])
}

func TestAuthRoutes(t *testing.T) {
	r := newTestRouter(t, docstore.NewMemoryStore(repository.StoreOptions()))

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Ana", "email": "ana@x.com", "password": "secret123"})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "ana@x.com", user["email"])
	assert.NotContains(t, user, "passwordHash")

	w = doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Ana", "email": "ana@x.com", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/auth/register", "", gin.H{"name": "Ana", "email": "not-an-email", "password": "secret123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@x.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["token"])

	wrongPassword := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@x.com", "password": "nope"})
	unknownEmail := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ghost@x.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestAuthRoutes_RateLimited(t *testing.T) {
	log, _ := test.NewNullLogger()
	r := NewRouter(RouterConfig{
		Store:       docstore.NewMemoryStore(repository.StoreOptions()),
		JWT:         utils.NewJWTUtil("test-secret", time.Hour),
		AuthLimiter: middleware.NewRateLimiter(0.001, 1),
		Log:         log,
		FrontendURL: "*",
		Version:     "test",
	})

	first := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "a@x.com", "password": "x"})
	assert.Equal(t, http.StatusUnauthorized, first.Code)
	second := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "a@x.com", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	w := doJSON(t, r, http.MethodGet, "/api/services", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServiceRoutes(t *testing.T) {
	r := newTestRouter(t, docstore.NewMemoryStore(repository.StoreOptions()))

	w := doJSON(t, r, http.MethodGet, "/api/services", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(4), body["total"])
	first := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "Consulta Veterinária", first["name"])
	assert.Equal(t, true, first["active"])

	w = doJSON(t, r, http.MethodGet, "/api/services/search?q=tosa", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total"])

	w = doJSON(t, r, http.MethodGet, "/api/services/search", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/services/s2", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodGet, "/api/services/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/services", "", gin.H{"name": "Microchip", "price": 99})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, w.Body.String())
}

func TestServiceRoutes_Authenticated(t *testing.T) {
	r := newTestRouter(t, docstore.NewMemoryStore(repository.StoreOptions()))
	token := register(t, r, "admin@x.com")

	w := doJSON(t, r, http.MethodPost, "/api/services", token, gin.H{"name": "Microchip", "description": "ID chip", "price": "99.90"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)["data"].(map[string]any)
	id := created["id"].(string)
	assert.Equal(t, 99.9, created["price"])

	w = doJSON(t, r, http.MethodPost, "/api/services", token, gin.H{"name": "Free", "price": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/services", token, gin.H{"name": "Bad", "price": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/services", token, gin.H{"name": "Bad", "price": "NaN"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPut, "/api/services/"+id, token, gin.H{"price": 120})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(120), updated["price"])
	assert.Equal(t, "Microchip", updated["name"])

	w = doJSON(t, r, http.MethodPut, "/api/services/missing", token, gin.H{"price": 120})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPut, "/api/services/"+id, token, gin.H{"price": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for i := 0; i < 2; i++ {
		w = doJSON(t, r, http.MethodDelete, "/api/services/"+id, token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decode(t, w)["data"].(map[string]any)["active"])
	}

	w = doJSON(t, r, http.MethodGet, "/api/services/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/services/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAppointmentRoutes(t *testing.T) {
	r := newTestRouter(t, docstore.NewMemoryStore(repository.StoreOptions()))
	token := register(t, r, "ana@x.com")
	other := register(t, r, "bob@x.com")

	w := doJSON(t, r, http.MethodGet, "/api/appointments/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/api/appointments", token, gin.H{
		"serviceId": "s2", "petName": "Rex", "ownerName": "Ana", "date": "2025-07-01", "time": "10:00",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	appointment := decode(t, w)["appointment"].(map[string]any)
	assert.Equal(t, "Pending", appointment["status"])
	assert.Equal(t, "Vacinação", appointment["serviceNameSnapshot"])
	assert.Equal(t, float64(50), appointment["servicePriceSnapshot"])

	w = doJSON(t, r, http.MethodPost, "/api/appointments", token, gin.H{"serviceId": "s2", "petName": "Rex"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/appointments", token, gin.H{
		"serviceId": "missing", "petName": "Rex", "ownerName": "Ana", "date": "2025-07-01", "time": "10:00",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var mine []map[string]any
	w = doJSON(t, r, http.MethodGet, "/api/appointments/me", token, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)

	w = doJSON(t, r, http.MethodGet, "/api/appointments/me", other, nil)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/appointments/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
