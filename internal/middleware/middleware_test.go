package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hashira10/render/internal/config"
	"github.com/Hashira10/render/internal/metrics"
)

func TestMetricPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/reports/overview", "/reports/overview"},
		{"/track/r1/m1/facebook", "/track/:params"},
		{"/capture/r1/m1/google", "/capture/:params"},
		{"/reports/campaigns/Q1", "/reports/campaigns/:params"},
		{"/api/messages", "/api/messages"},
		{"/api/messages/abc", "/api/messages/:id"},
		{"/api/recipient_groups/abc/recipients", "/api/recipient_groups/:id"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, metricPath(tc.path), tc.path)
	}
}

func TestLoggingMiddlewareRecordsRequests(t *testing.T) {
	// Prometheus collectors register globally, so this is the only
	// test in the package that constructs a Metrics instance.
	m := metrics.NewMetrics("middleware_test")
	l := NewLoggingMiddleware(zap.NewNop())
	l.SetMetrics(m)

	h := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, path := range []string{"/track/r1/m1/facebook", "/track/r2/m1/google", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	// Tracking hits collapse into one label value.
	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.HTTPRequests.WithLabelValues("/track/:params", http.MethodGet, "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.HTTPRequests.WithLabelValues("/health", http.MethodGet, "204")))
}

func TestLoggingMiddlewareWithoutMetrics(t *testing.T) {
	l := NewLoggingMiddleware(zap.NewNop())
	h := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := config.AuthConfig{
		Enabled:   true,
		MasterKey: "secret",
		SkipPaths: []string{"/health", "/track/"},
	}
	a := NewAuthMiddleware(cfg, zap.NewNop())
	h := a.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(path, key string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if key != "" {
			req.Header.Set(AuthHeaderName, key)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do("/api/messages", ""))
	assert.Equal(t, http.StatusUnauthorized, do("/api/messages", "wrong"))
	assert.Equal(t, http.StatusOK, do("/api/messages", "secret"))
	assert.Equal(t, http.StatusOK, do("/health", ""))
	assert.Equal(t, http.StatusOK, do("/track/r1/m1/facebook", ""))
}

func TestAuthMiddlewareQueryParam(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, MasterKey: "secret"}
	a := NewAuthMiddleware(cfg, zap.NewNop())
	h := a.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/messages?api_key=secret", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitMiddlewareGlobalBucket(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 2}
	rl := NewRateLimitMiddleware(cfg, zap.NewNop())
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/messages", nil))
		codes = append(codes, w.Code)
	}

	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(r *http.Request)
		remote string
		want   string
	}{
		{"x_forwarded_for", func(r *http.Request) {
			r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		}, "10.0.0.2:4000", "203.0.113.7"},
		{"x_real_ip", func(r *http.Request) {
			r.Header.Set("X-Real-IP", "203.0.113.8")
		}, "10.0.0.2:4000", "203.0.113.8"},
		{"remote_addr", func(r *http.Request) {}, "203.0.113.9:4000", "203.0.113.9"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			tc.setup(req)
			assert.Equal(t, tc.want, ClientIP(req))
		})
	}
}
