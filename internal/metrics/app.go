package metrics

import (
	"time"

	"github.com/wishmail/wishmail/internal/observability"
)

// Application-level metrics following Prometheus conventions
var (
	// Delivery metrics
	SendsTotal       = "wishmail_sends_total"
	SendDuration     = "wishmail_send_duration_ms"
	ThrottledTotal   = "wishmail_throttled_total"
	CooldownsCleared = "wishmail_cooldowns_cleared_total"
	LimiterResets    = "wishmail_rate_limit_resets_total"

	// Limiter window gauges
	HourlySent      = "wishmail_rate_limit_hourly_sent"
	DailySent       = "wishmail_rate_limit_daily_sent"
	ActiveCooldowns = "wishmail_rate_limit_active_cooldowns"

	// Daily job metrics
	JobRunsTotal  = "wishmail_job_runs_total"
	JobDuration   = "wishmail_job_duration_ms"
	JobRecipients = "wishmail_job_recipients_total"

	// Health check metrics
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	// Server lifecycle metrics
	ServerStartTime = "app_server_start_time_seconds"
)

// Send outcomes used as the status label.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusThrottled = "throttled"
)

// RecordSend records one delivery attempt that reached the transport.
func RecordSend(success bool, duration time.Duration) {
	status := StatusSuccess
	if !success {
		status = StatusFailed
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			SendsTotal,
			1,
			map[string]string{"status": status},
		)
		_ = observability.TelemetrySystem.Histogram(
			SendDuration,
			duration,
			map[string]string{"status": status},
		)
	}
}

// RecordThrottled records a send refused by the limiter, labelled by the
// refusing constraint (hourly_limit, daily_limit, recipient_cooldown, min_interval).
func RecordThrottled(kind string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ThrottledTotal,
			1,
			map[string]string{"kind": kind},
		)
	}
}

// RecordLimiterState publishes the current window counters.
func RecordLimiterState(hourlySent, dailySent, activeCooldowns int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(HourlySent, float64(hourlySent), nil)
		_ = observability.TelemetrySystem.Gauge(DailySent, float64(dailySent), nil)
		_ = observability.TelemetrySystem.Gauge(ActiveCooldowns, float64(activeCooldowns), nil)
	}
}

// RecordLimiterReset records an administrative reset of all windows.
func RecordLimiterReset() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(LimiterResets, 1, nil)
	}
}

// RecordCooldownCleared records an administrative cooldown removal.
func RecordCooldownCleared(found bool) {
	result := "cleared"
	if !found {
		result = "absent"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CooldownsCleared,
			1,
			map[string]string{"result": result},
		)
	}
}

// RecordJobRun records one execution of the daily greeting job.
// trigger is "schedule" or "manual".
func RecordJobRun(trigger string, success bool, duration time.Duration) {
	status := StatusSuccess
	if !success {
		status = StatusFailed
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			JobRunsTotal,
			1,
			map[string]string{
				"trigger": trigger,
				"status":  status,
			},
		)
		_ = observability.TelemetrySystem.Histogram(
			JobDuration,
			duration,
			map[string]string{"trigger": trigger},
		)
	}
}

// RecordJobRecipients records per-outcome recipient counts for a job run.
func RecordJobRecipients(sent, failed, throttled int) {
	if observability.TelemetrySystem == nil {
		return
	}
	for status, count := range map[string]int{
		StatusSuccess:   sent,
		StatusFailed:    failed,
		StatusThrottled: throttled,
	} {
		if count == 0 {
			continue
		}
		_ = observability.TelemetrySystem.Counter(
			JobRecipients,
			float64(count),
			map[string]string{"status": status},
		)
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			ServerStartTime,
			float64(timestamp),
			nil,
		)
	}
}
