package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry/exporters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishmail/wishmail/internal/observability"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func stubExporter(t *testing.T, port int, rt roundTripFunc) {
	t.Helper()

	originalClient, originalPort, originalExporter := metricsProxyClient, exporterPort, observability.PrometheusExporter
	t.Cleanup(func() {
		metricsProxyClient = originalClient
		exporterPort = originalPort
		observability.PrometheusExporter = originalExporter
	})

	metricsProxyClient = &http.Client{Transport: rt}
	exporterPort = func() int { return port }
	observability.PrometheusExporter = exporters.NewPrometheusExporter("wishmail-test", ":9464")
}

func decodeErrorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp.Error.Code
}

func TestMetricsHandlerProxiesExporter(t *testing.T) {
	var target string
	stubExporter(t, 9464, func(req *http.Request) (*http.Response, error) {
		target = req.URL.String()
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("wishmail_rate_limit_decisions_total 3\n")),
			Header:     make(http.Header),
		}
		resp.Header.Set("Connection", "close")
		return resp, nil
	})

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, "http://127.0.0.1:9464/metrics", target)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, prometheusContentType, rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Connection"))
	assert.Contains(t, rec.Body.String(), "wishmail_rate_limit_decisions_total")
}

func TestMetricsHandlerWithoutExporter(t *testing.T) {
	stubExporter(t, 0, func(*http.Request) (*http.Response, error) {
		t.Fatal("exporter must not be called")
		return nil, nil
	})

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", decodeErrorCode(t, rec.Body))
}

func TestMetricsHandlerExporterDown(t *testing.T) {
	stubExporter(t, 9464, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", decodeErrorCode(t, rec.Body))
}
