package observability

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/fulmenhq/gofulmen/telemetry/exporters"
)

var (
	// TelemetrySystem receives every metric emitted by internal/metrics. Nil
	// means metrics are disabled and emission is a no-op.
	TelemetrySystem *telemetry.System

	// PrometheusExporter serves the registry on loopback. The HTTP server
	// proxies it at /metrics.
	PrometheusExporter *exporters.PrometheusExporter

	metricsMu   sync.Mutex
	metricsPort int
)

// InitMetrics starts a Prometheus exporter on 127.0.0.1:port (0 picks a free
// port) and installs a telemetry system that emits to it. Metric names are
// prefixed with namespace.
func InitMetrics(namespace string, port int) error {
	if port < 0 {
		port = 0
	}

	metricsMu.Lock()
	defer metricsMu.Unlock()

	if err := stopExporterLocked(); err != nil {
		return fmt.Errorf("stop previous exporter: %w", err)
	}

	exporter := exporters.NewPrometheusExporter(namespace, fmt.Sprintf("127.0.0.1:%d", port))
	if err := exporter.Start(); err != nil {
		return fmt.Errorf("start prometheus exporter: %w", err)
	}

	bound, err := resolvePort(exporter.GetAddr())
	if err != nil {
		_ = exporter.Stop()
		return fmt.Errorf("resolve exporter port: %w", err)
	}

	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: exporter})
	if err != nil {
		_ = exporter.Stop()
		return err
	}

	PrometheusExporter = exporter
	TelemetrySystem = sys
	metricsPort = bound
	return nil
}

// ShutdownMetrics stops the exporter and detaches the telemetry system so
// later emissions become no-ops.
func ShutdownMetrics() error {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return stopExporterLocked()
}

func stopExporterLocked() error {
	TelemetrySystem = nil
	metricsPort = 0
	if PrometheusExporter == nil {
		return nil
	}
	err := PrometheusExporter.Stop()
	PrometheusExporter = nil
	return err
}

// GetMetricsPort returns the exporter's bound port, or 0 when it is not running.
func GetMetricsPort() int {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	return metricsPort
}

func resolvePort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
