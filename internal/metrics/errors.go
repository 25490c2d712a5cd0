package metrics

import (
	"strconv"

	"github.com/wishmail/wishmail/internal/observability"
)

// HTTP failure metrics. Routes are chi patterns, never raw paths: admin paths
// carry recipient addresses.
const (
	HTTPErrorsTotal = "wishmail_http_errors_total"
	PanicsTotal     = "wishmail_panics_total"
)

// RecordHTTPError counts one error envelope written for route.
func RecordHTTPError(route, errorCode string, httpStatus int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		HTTPErrorsTotal,
		1,
		map[string]string{
			"route":       route,
			"error_code":  errorCode,
			"http_status": strconv.Itoa(httpStatus),
		},
	)
}

// RecordPanic counts a handler panic recovered on route.
func RecordPanic(route string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(PanicsTotal, 1, map[string]string{"route": route})
}
