package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishmail/wishmail/internal/core/ratelimit"
)

func TestEnsureEnvelopeMapsThrottledErrors(t *testing.T) {
	dec := ratelimit.Decision{
		Reason:     "recipient cooling down, retry in 4m 30s",
		Kind:       ratelimit.KindCooldown,
		RetryAfter: 270 * time.Second,
	}
	err := fmt.Errorf("send test email: %w", &ratelimit.ThrottledError{Decision: dec})

	env := EnsureEnvelope(err)
	require.Equal(t, CodeRateLimited, env.Code)
	assert.Equal(t, dec.Reason, env.Message)
	assert.Equal(t, 270, env.Details[DetailRetryAfterSeconds])
	assert.Equal(t, string(ratelimit.KindCooldown), env.Details[DetailKind])
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatusFromEnvelope(env))
}

func TestEnsureEnvelopePassesThroughEnvelopes(t *testing.T) {
	original := NewInvalidInputError("email is required")
	assert.Same(t, original, EnsureEnvelope(original))

	timeout := EnsureEnvelope(fmt.Errorf("dial: %w", context.DeadlineExceeded))
	assert.Equal(t, CodeTimeout, timeout.Code)

	other := EnsureEnvelope(fmt.Errorf("boom"))
	assert.Equal(t, CodeInternal, other.Code)
	assert.Equal(t, "boom", other.Context["wrapped_error"])
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	assert.Equal(t, 2, RetryAfterSeconds(ratelimit.Decision{RetryAfter: 1500 * time.Millisecond}))
	assert.Equal(t, 1, RetryAfterSeconds(ratelimit.Decision{RetryAfter: 0}))
	assert.Equal(t, 300, RetryAfterSeconds(ratelimit.Decision{RetryAfter: 5 * time.Minute}))
}

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		CodeInvalidInput:       http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeNotFound:           http.StatusNotFound,
		CodeRateLimited:        http.StatusTooManyRequests,
		CodeExternalService:    http.StatusBadGateway,
		CodeServiceUnavailable: http.StatusServiceUnavailable,
		CodeTimeout:            http.StatusGatewayTimeout,
		"SOMETHING_ELSE":       http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, HTTPStatusFromCode(code), code)
	}
}

func TestRespondWithEnvelopeRateLimited(t *testing.T) {
	env := NewRateLimitedError(ratelimit.Decision{
		Reason:     "hourly limit reached (50 emails/hour)",
		Kind:       ratelimit.KindHourlyLimit,
		RetryAfter: 12*time.Minute + 400*time.Millisecond,
	})

	req := httptest.NewRequest(http.MethodPost, "/admin/test-email", nil)
	rec := httptest.NewRecorder()
	RespondWithEnvelope(rec, req, env)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "721", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeRateLimited, body.Error.Code)
	assert.Equal(t, "hourly limit reached (50 emails/hour)", body.Error.Details[DetailReason])
	assert.EqualValues(t, 721, body.Error.Details[DetailRetryAfterSeconds])
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestWrapExternalServiceKeepsCause(t *testing.T) {
	env := WrapExternalService(context.Background(), fmt.Errorf("smtp: auth failed"), "failed to send email")
	assert.Equal(t, CodeExternalService, env.Code)
	assert.Equal(t, gferrors.SeverityHigh, env.Severity)
	assert.Equal(t, "smtp: auth failed", env.Context["wrapped_error"])
	assert.NotEmpty(t, env.CorrelationID)
}
