package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishmail/wishmail/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	originalTelemetry := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() {
		observability.TelemetrySystem = originalTelemetry
	})

	return collector
}

func TestRequestMetricsEmitsCountAndDuration(t *testing.T) {
	collector := setupTelemetry(t)

	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		_, _ = w.Write([]byte(`{"hourly_sent":0}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/rate-limit", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"hourly_sent":0}`, rec.Body.String())
	assert.Greater(t, collector.CountMetricsByName("http_requests_total"), 0)
	assert.Greater(t, collector.CountMetricsByName("http_request_duration_ms"), 0)
}

func TestRequestMetricsWithTelemetryDisabled(t *testing.T) {
	originalTelemetry := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.TelemetrySystem = originalTelemetry
	})

	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/test-email", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}

	_, err := rec.Write([]byte("partial"))
	require.NoError(t, err)
	rec.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusOK, rec.status)
	assert.Equal(t, int64(len("partial")), rec.written)
}

func TestRoutePatternHidesRecipient(t *testing.T) {
	var seen string
	r := chi.NewRouter()
	r.Use(RequestMetrics)
	r.Delete("/admin/rate-limit/cooldowns/{recipient}", func(w http.ResponseWriter, req *http.Request) {
		seen = RoutePattern(req)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/rate-limit/cooldowns/alice@example.com", nil))

	assert.Equal(t, "/admin/rate-limit/cooldowns/{recipient}", seen)
}

func TestRoutePatternWithoutRouter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/unknown", nil)
	assert.Equal(t, UnmatchedRoute, RoutePattern(req))
}

func TestIsProbe(t *testing.T) {
	assert.True(t, isProbe("/health"))
	assert.True(t, isProbe("/health/ready"))
	assert.True(t, isProbe("/metrics"))
	assert.False(t, isProbe("/healthz"))
	assert.False(t, isProbe("/admin/rate-limit"))
}
