package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"teesheet/internal/config"

	"github.com/stretchr/testify/assert"
)

func authConfig(enabled bool, rps float64) config.AdminConfig {
	return config.AdminConfig{
		Auth: config.AdminAuthConfig{
			Enabled:      enabled,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.AdminClientKey{
				{Key: "panel-key", Extra: "panel-secret", Name: "admin-panel"},
			},
		},
		RateLimit: config.AdminRateLimitCfg{RPS: rps, Burst: 2},
	}
}

func serveAuth(t *testing.T, cfg config.AdminConfig, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	auth := newHTTPAuth(cfg)
	handler := auth.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/unmatched", nil)
	rec := serveAuth(t, authConfig(false, 0), req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMissingHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/unmatched", nil)
	rec := serveAuth(t, authConfig(true, 0), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing api key headers")
}

func TestAuthUnknownKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/unmatched", nil)
	req.Header.Set("x-api-key", "who-dis")
	req.Header.Set("x-api-extra", "panel-secret")
	rec := serveAuth(t, authConfig(true, 0), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthWrongExtra(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/unmatched", nil)
	req.Header.Set("x-api-key", "panel-key")
	req.Header.Set("x-api-extra", "wrong")
	rec := serveAuth(t, authConfig(true, 0), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthValidKeyPair(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/unmatched", nil)
	req.Header.Set("x-api-key", "panel-key")
	req.Header.Set("x-api-extra", "panel-secret")
	rec := serveAuth(t, authConfig(true, 0), req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthHealthzBypass(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := serveAuth(t, authConfig(true, 0), req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRateLimitPerKey(t *testing.T) {
	cfg := authConfig(true, 0.001)
	auth := newHTTPAuth(cfg)
	handler := auth.wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	newReq := func(key string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/unmatched", nil)
		req.Header.Set("x-api-key", key)
		req.Header.Set("x-api-extra", "panel-secret")
		return req
	}

	// Burst of 2 for the configured key, then throttled.
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, newReq("panel-key"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq("panel-key"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
