package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitByIP_EnforcesLimitPerClient(t *testing.T) {
	limiter := RateLimitByIP(RateLimitConfig{
		RequestsPerMinute: 3,
		IPConfig:          &pkghttp.IPConfig{TrustAll: true},
	})
	handler := limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("198.51.100.1"), "request %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))

	// a different client has its own budget
	assert.Equal(t, http.StatusOK, send("198.51.100.2"))
}

func TestRateLimitByIP_IgnoresSpoofedHeadersFromUntrustedPeer(t *testing.T) {
	limiter := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1, IPConfig: &pkghttp.IPConfig{}})
	handler := limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for _, spoofed := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "203.0.113.50:1234"
		req.Header.Set("X-Forwarded-For", spoofed)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimitByIP_OnlyConfiguredPaths(t *testing.T) {
	limiter := RateLimitByIP(RateLimitConfig{
		RequestsPerMinute: 1,
		IPConfig:          &pkghttp.IPConfig{},
		Paths:             []string{"/api/auth/login"},
	})
	handler := limiter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "203.0.113.60:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("/api/auth/login"))
	assert.Equal(t, http.StatusTooManyRequests, send("/api/auth/login/"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, send("/health"), "unlisted paths are never limited")
	}
}

func TestRateLimitByIP_CountsRequestsTheGuardDenies(t *testing.T) {
	gate := &mockGate{CheckBeforeAttemptFunc: func(ctx context.Context, key models.AttemptKey) models.Verdict {
		return models.Verdict{Locked: true, Remaining: 10 * time.Minute, Attempts: 4}
	}}
	guard := newTestGuard(t, gate)
	limiter := RateLimitByIP(RateLimitConfig{
		RequestsPerMinute: 1,
		IPConfig:          &pkghttp.IPConfig{},
		Paths:             []string{"/login"},
	})
	handler := limiter(guard.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("locked key reached the handler")
	})))

	send := func() map[string]any {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.RemoteAddr = "203.0.113.61:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusTooManyRequests, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body
	}

	first := send()
	assert.Equal(t, true, first["locked"], "first request is answered by the guard")

	second := send()
	assert.NotContains(t, second, "locked", "second request is stopped by the flood limit")
	assert.Len(t, gate.calls, 1, "flood-limited requests never reach the store")
}
