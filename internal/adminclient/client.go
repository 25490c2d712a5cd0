// Package adminclient talks to the admin endpoints of a running wishmail
// server, so CLI commands act on the same limiter the scheduler uses.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wishmail/wishmail/internal/core/ratelimit"
)

const (
	// DefaultBaseURL matches the default server bind address.
	DefaultBaseURL = "http://127.0.0.1:8080"
	defaultTimeout = 30 * time.Second
)

// ErrNoToken is returned before any request when no admin token is set.
var ErrNoToken = errors.New("admin token is required (set WISHMAIL_SERVER_ADMIN_TOKEN or --token)")

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Throttled reports whether the server refused with RATE_LIMITED.
func (e *APIError) Throttled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Client calls the admin API with a bearer token.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New returns a client with defaults applied.
func New(baseURL, token string) *Client {
	base := strings.TrimSpace(baseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		Token:   strings.TrimSpace(token),
		Timeout: defaultTimeout,
	}
}

// ResetResult is the server's reply to a reset.
type ResetResult struct {
	Reset bool            `json:"reset"`
	Stats ratelimit.Stats `json:"stats"`
}

// ClearResult is the server's reply to a cooldown clear.
type ClearResult struct {
	Recipient string `json:"recipient"`
	Cleared   bool   `json:"cleared"`
}

// Stats fetches the live limiter snapshot.
func (c *Client) Stats(ctx context.Context) (ratelimit.Stats, error) {
	var stats ratelimit.Stats
	err := c.do(ctx, http.MethodGet, "/admin/rate-limit", nil, &stats)
	return stats, err
}

// Reset zeroes the server's hourly and daily windows and cooldowns.
func (c *Client) Reset(ctx context.Context) (ResetResult, error) {
	var result ResetResult
	err := c.do(ctx, http.MethodPost, "/admin/rate-limit/reset", nil, &result)
	return result, err
}

// ClearCooldown removes one recipient's cooldown.
func (c *Client) ClearCooldown(ctx context.Context, recipient string) (ClearResult, error) {
	var result ClearResult
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return result, errors.New("recipient is required")
	}
	err := c.do(ctx, http.MethodDelete, "/admin/rate-limit/cooldowns/"+url.PathEscape(recipient), nil, &result)
	return result, err
}

// SendTest asks the server to deliver the test greeting through its limiter.
func (c *Client) SendTest(ctx context.Context, email string) error {
	payload := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/admin/test-email", payload, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if c == nil {
		return errors.New("admin client not configured")
	}
	if c.Token == "" {
		return ErrNoToken
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
		apiErr.RetryAfter = time.Duration(seconds) * time.Second
	}
	return apiErr
}
