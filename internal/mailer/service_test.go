package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wishmail/wishmail/internal/core/ratelimit"
	"github.com/wishmail/wishmail/internal/observability"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (f *fakeTransport) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	return collector
}

func newTestService(t *testing.T, transport Transport, limits ratelimit.Limits, now *time.Time) *Service {
	t.Helper()
	limiter := ratelimit.New(limits, ratelimit.WithClock(func() time.Time { return *now }))
	svc, err := NewService(transport, limiter, WithSender("Birthday Wishes", "bot@163.com"))
	require.NoError(t, err)
	return svc
}

func TestSendGreetingDelivers(t *testing.T) {
	collector := setupTelemetry(t)
	now := time.Date(2025, 5, 17, 9, 0, 0, 0, time.UTC)
	transport := &fakeTransport{}
	svc := newTestService(t, transport, ratelimit.DefaultLimits, &now)

	err := svc.SendGreeting(context.Background(), Greeting{Name: "Alice", Email: "alice@example.com", Wish: "生日快乐！"})
	require.NoError(t, err)
	require.Equal(t, 1, transport.count())

	msg := transport.sent[0]
	assert.Equal(t, "Birthday Wishes", msg.FromName)
	assert.Equal(t, "bot@163.com", msg.FromAddr)
	assert.Equal(t, "alice@example.com", msg.ToAddr)
	assert.Equal(t, "🎂 Alice，生日快乐！", msg.Subject)
	assert.Contains(t, msg.Text, "亲爱的 Alice：")
	assert.Contains(t, msg.HTML, "生日快乐！")

	stats := svc.Limiter().Stats()
	assert.Equal(t, 1, stats.HourlySent)
	assert.Equal(t, 1, stats.ActiveCooldowns)

	assert.Greater(t, collector.CountMetricsByName("wishmail_sends_total"), 0)
	assert.Greater(t, collector.CountMetricsByName("wishmail_rate_limit_hourly_sent"), 0)
}

func TestSendGreetingThrottledSkipsTransport(t *testing.T) {
	collector := setupTelemetry(t)
	now := time.Date(2025, 5, 17, 9, 0, 0, 0, time.UTC)
	transport := &fakeTransport{}
	svc := newTestService(t, transport, ratelimit.DefaultLimits, &now)

	g := Greeting{Name: "Alice", Email: "alice@example.com", Wish: "生日快乐！"}
	require.NoError(t, svc.SendGreeting(context.Background(), g))

	now = now.Add(10 * time.Second)
	err := svc.SendGreeting(context.Background(), g)
	require.ErrorIs(t, err, ratelimit.ErrThrottled)

	te, ok := ratelimit.AsThrottled(err)
	require.True(t, ok)
	assert.Equal(t, ratelimit.KindCooldown, te.Decision.Kind)
	assert.Equal(t, "recipient cooling down, retry in 4m 50s", te.Decision.Reason)

	assert.Equal(t, 1, transport.count())
	assert.Equal(t, int64(1), svc.Limiter().Stats().TotalBlocked)
	assert.Greater(t, collector.CountMetricsByName("wishmail_throttled_total"), 0)
}

func TestSendGreetingTransportFailureNotRecorded(t *testing.T) {
	now := time.Date(2025, 5, 17, 9, 0, 0, 0, time.UTC)
	sendErr := errors.New("smtp send: 535 authentication failed")
	transport := &fakeTransport{err: sendErr}
	svc := newTestService(t, transport, ratelimit.DefaultLimits, &now)

	err := svc.SendGreeting(context.Background(), Greeting{Name: "Bob", Email: "bob@example.com", Wish: "生日快乐！"})
	require.ErrorIs(t, err, sendErr)
	require.False(t, ratelimit.IsThrottled(err))

	stats := svc.Limiter().Stats()
	assert.Zero(t, stats.HourlySent)
	assert.Zero(t, stats.TotalSent)
	assert.Zero(t, stats.TotalBlocked)
}

func TestSendTestUsesFixedGreeting(t *testing.T) {
	now := time.Date(2025, 5, 17, 9, 0, 0, 0, time.UTC)
	transport := &fakeTransport{}
	svc := newTestService(t, transport, ratelimit.DefaultLimits, &now)

	require.NoError(t, svc.SendTest(context.Background(), "ops@example.com"))
	require.Equal(t, 1, transport.count())
	assert.Equal(t, Subject(TestRecipientName), transport.sent[0].Subject)
	assert.Contains(t, transport.sent[0].Text, TestWish)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, ratelimit.New(ratelimit.DefaultLimits))
	require.Error(t, err)

	_, err = NewService(&fakeTransport{}, nil)
	require.Error(t, err)
}

func TestCheckDoesNotCountBlocked(t *testing.T) {
	now := time.Date(2026, 5, 17, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, &fakeTransport{}, ratelimit.Limits{
		MaxPerHour:  50,
		MaxPerDay:   200,
		Cooldown:    5 * time.Minute,
		MinInterval: 2 * time.Second,
	}, &now)

	require.NoError(t, svc.SendTest(context.Background(), "alice@example.com"))

	dec := svc.Check("bob@example.com")
	assert.False(t, dec.Allowed)
	assert.Equal(t, ratelimit.KindMinInterval, dec.Kind)
	assert.Zero(t, svc.Limiter().Stats().TotalBlocked)
}
