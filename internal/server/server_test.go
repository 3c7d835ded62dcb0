package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"merch-pickup/internal/handler"
	"merch-pickup/internal/mw"

	"github.com/stretchr/testify/assert"
)

func newTestRouter(origins ...string) http.Handler {
	h := handler.New(nil, nil, nil, nil, nil)
	return NewRouter(h, Options{AllowedOrigins: origins, JWTSecret: "secret"})
}

func TestProtectedRoutesRejectGuests(t *testing.T) {
	r := newTestRouter("*")

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/orders"},
		{http.MethodPost, "/api/staff/deliver"},
		{http.MethodPost, "/api/staff/orders/8f0e3c4a-5d7b-4a64-9b1e-2f6c1d0a9e11/return"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
		assert.NotEmpty(t, w.Header().Get(mw.RequestIDHeader))
	}
}

func TestBadTokenIsRejected(t *testing.T) {
	r := newTestRouter("*")
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter("https://shop.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/api/checkout", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", handler.IdempotencyKeyHeader)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/checkout", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
