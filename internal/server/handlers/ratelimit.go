package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wishmail/wishmail/internal/core"
	"github.com/wishmail/wishmail/internal/core/ratelimit"
	apperrors "github.com/wishmail/wishmail/internal/errors"
	"github.com/wishmail/wishmail/internal/metrics"
)

// maxTestEmailBody caps the POST /admin/test-email payload.
const maxTestEmailBody = 4 << 10

// TestSender delivers the fixed test greeting.
type TestSender interface {
	SendTest(ctx context.Context, email string) error
}

// ResetResponse is returned by POST /admin/rate-limit/reset.
type ResetResponse struct {
	Reset bool            `json:"reset"`
	Stats ratelimit.Stats `json:"stats"`
}

// ClearCooldownResponse is returned by DELETE /admin/rate-limit/cooldowns/{recipient}.
type ClearCooldownResponse struct {
	Recipient string `json:"recipient"`
	Cleared   bool   `json:"cleared"`
}

// TestEmailRequest is the POST /admin/test-email body.
type TestEmailRequest struct {
	Email string `json:"email"`
}

// TestEmailResponse reports a delivered test email.
type TestEmailResponse struct {
	Sent      bool   `json:"sent"`
	Recipient string `json:"recipient"`
}

// RateLimitHandler serves the admin view of the shared limiter.
type RateLimitHandler struct {
	limiter *ratelimit.RateLimiter
	sender  TestSender
}

// NewRateLimitHandler builds the admin handlers. sender may be nil when mail
// delivery is not configured; the test-email route then reports 503.
func NewRateLimitHandler(limiter *ratelimit.RateLimiter, sender TestSender) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter, sender: sender}
}

// Stats handles GET /admin/rate-limit.
func (h *RateLimitHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.limiter.Stats())
}

// Reset handles POST /admin/rate-limit/reset.
func (h *RateLimitHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.limiter.Reset()
	metrics.RecordLimiterReset()

	stats := h.limiter.Stats()
	metrics.RecordLimiterState(stats.HourlySent, stats.DailySent, stats.ActiveCooldowns)
	writeJSON(w, http.StatusOK, ResetResponse{Reset: true, Stats: stats})
}

// ClearCooldown handles DELETE /admin/rate-limit/cooldowns/{recipient}.
func (h *RateLimitHandler) ClearCooldown(w http.ResponseWriter, r *http.Request) {
	recipient, err := url.PathUnescape(chi.URLParam(r, "recipient"))
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "recipient is not a valid path segment"))
		return
	}
	recipient = recipientKey(recipient)
	if recipient == "" {
		apperrors.RespondWithError(w, r, apperrors.NewInvalidInputError("recipient is required"))
		return
	}

	cleared := h.limiter.ClearCooldown(recipient)
	metrics.RecordCooldownCleared(cleared)
	writeJSON(w, http.StatusOK, ClearCooldownResponse{Recipient: recipient, Cleared: cleared})
}

// SendTestEmail handles POST /admin/test-email.
func (h *RateLimitHandler) SendTestEmail(w http.ResponseWriter, r *http.Request) {
	if h.sender == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("mail delivery is not configured"))
		return
	}

	var req TestEmailRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxTestEmailBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, "request body must be {\"email\": \"...\"}"))
		return
	}

	email, err := core.NormalizeEmail(req.Email)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, err.Error()))
		return
	}

	if err := h.sender.SendTest(r.Context(), email); err != nil {
		if te, ok := ratelimit.AsThrottled(err); ok {
			apperrors.RespondWithError(w, r, apperrors.NewRateLimitedError(te.Decision))
			return
		}
		apperrors.RespondWithError(w, r, apperrors.WrapExternalService(r.Context(), err, "test email delivery failed"))
		return
	}

	writeJSON(w, http.StatusOK, TestEmailResponse{Sent: true, Recipient: email})
}

// recipientKey matches the normalization applied to stored addresses.
func recipientKey(recipient string) string {
	if email, err := core.NormalizeEmail(recipient); err == nil {
		return email
	}
	return strings.TrimSpace(recipient)
}
