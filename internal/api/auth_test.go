package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"courtside/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestHTTPAuth(t *testing.T) {
	cfg := newTestConfig()
	auth := NewHTTPAuth(cfg)

	var gotActor string
	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = actorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(path string, headers map[string]string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("Success", func(t *testing.T) {
		code := serve("/api/v1/sports", map[string]string{"x-api-key": appKey, "x-api-extra": appExtra})
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "web", gotActor)
	})

	t.Run("MissingHeaders", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("/api/v1/sports", nil))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		code := serve("/api/v1/sports", map[string]string{"x-api-key": "nope", "x-api-extra": appExtra})
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("InvalidExtra", func(t *testing.T) {
		code := serve("/api/v1/sports", map[string]string{"x-api-key": appKey, "x-api-extra": "wrong"})
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		code := serve("/api/v1/admin/bookings", map[string]string{"x-api-key": appKey, "x-api-extra": appExtra})
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("AdminCoversEverything", func(t *testing.T) {
		code := serve("/api/v1/bookings", map[string]string{"x-api-key": adminKey, "x-api-extra": adminExtra})
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "front-desk", gotActor)
	})

	t.Run("ProbesBypassAuth", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve("/healthz", nil))
	})
}

func TestHTTPAuth_Disabled(t *testing.T) {
	cfg := &config.APIConfig{}
	auth := NewHTTPAuth(cfg)

	var gotActor string
	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = actorFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/bookings", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, actorAnonymous, gotActor)
}

func TestHTTPAuth_UnnamedKeyIsMasked(t *testing.T) {
	cfg := &config.APIConfig{Auth: config.APIAuthConfig{
		Enabled: true,
		APIKeys: []config.APIClientKey{{Key: "secret-key", Extra: "x"}},
	}}
	auth := NewHTTPAuth(cfg)

	var gotActor string
	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = actorFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sports", nil)
	req.Header.Set(apiKeyHeaderDefault, "secret-key")
	req.Header.Set(apiExtraHeaderDefault, "x")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "key:secr****", gotActor)
}

func TestHTTPAuth_RateLimit(t *testing.T) {
	cfg := newTestConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 1}
	auth := NewHTTPAuth(cfg)
	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	do := func(key, extra string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sports", nil)
		req.Header.Set("x-api-key", key)
		req.Header.Set("x-api-extra", extra)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do(appKey, appExtra))
	assert.Equal(t, http.StatusTooManyRequests, do(appKey, appExtra))
	// Buckets are per key.
	assert.Equal(t, http.StatusOK, do(adminKey, adminExtra))
}

func TestRequiredPermissionHTTP(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/sports", permReadCatalog},
		{"/api/v1/sports/futsal/availability", permReadCatalog},
		{"/api/v1/bookings", permWriteBookings},
		{"/api/v1/bookings/3/cancel", permWriteBookings},
		{"/api/v1/admin/walk-ins", permAdmin},
		{"/api/v1/other", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		assert.Equal(t, tt.want, requiredPermissionHTTP(req), tt.path)
	}
}

func TestCheckPermissions_EmptyListAllowsAll(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bookings", nil)
	assert.NoError(t, checkPermissions(config.APIClientKey{Key: "k"}, req))
}

func TestRateLimiterDisabled(t *testing.T) {
	l := newRateLimiter(&config.APIConfig{})
	for i := 0; i < 100; i++ {
		if !l.allow("client") {
			t.Fatalf("request %d was limited with rate limiting disabled", i)
		}
	}
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", maskKey("abc"))
	assert.Equal(t, "abcd****", maskKey("abcdefgh"))
}
