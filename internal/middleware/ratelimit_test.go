package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shelfsight/querydeck/internal/config"
	"github.com/shelfsight/querydeck/internal/metrics"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// Registered once: promauto collectors go to the default registry.
var testMetrics = metrics.NewMetrics("middleware_test")

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitDisabledPassesThrough(t *testing.T) {
	rl := NewRateLimitMiddleware(config.RateLimitConfig{Enabled: false}, zap.NewNop(), nil)

	var called bool
	rec := httptest.NewRecorder()
	rl.Handler(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/brands", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitRejectionIsCounted(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, RPS: 0, Burst: 0}
	rl := NewRateLimitMiddleware(cfg, zap.NewNop(), testMetrics)

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/metrics", nil)
	req.RemoteAddr = "10.1.2.3:40000"
	rec := httptest.NewRecorder()
	rl.Handler(okHandler(&called)).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	hits := testutil.ToFloat64(testMetrics.RateLimitHits.WithLabelValues("/api/dashboard/metrics", "10.1.2.3"))
	assert.Equal(t, float64(1), hits)
}

func TestPerIPRejectionIsCounted(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, RPS: 0, Burst: 0}
	rl := NewRateLimitMiddleware(cfg, zap.NewNop(), testMetrics)

	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/waterfall", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	rl.HandlerPerIP(okHandler(&called)).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	hits := testutil.ToFloat64(testMetrics.RateLimitHits.WithLabelValues("/api/waterfall", "203.0.113.7"))
	assert.Equal(t, float64(1), hits)
}

func TestRateLimitNilMetricsStillRejects(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, RPS: 0, Burst: 0}
	rl := NewRateLimitMiddleware(cfg, zap.NewNop(), nil)

	var called bool
	rec := httptest.NewRecorder()
	rl.Handler(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/funnel", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
