package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testZone = time.FixedZone("CST", 8*60*60)

// newTestLimiter returns a limiter driven by *now, which tests advance by hand.
func newTestLimiter(limits Limits, now *time.Time) *RateLimiter {
	return New(limits, WithClock(func() time.Time { return *now }), WithLocation(testZone))
}

func scenarioLimits() Limits {
	return Limits{
		MaxPerHour:  3,
		MaxPerDay:   100,
		Cooldown:    300 * time.Second,
		MinInterval: 2 * time.Second,
	}
}

func TestCheckAllowsFreshLimiter(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	limiter := newTestLimiter(scenarioLimits(), &now)

	dec := limiter.Check("test@example.com")
	require.True(t, dec.Allowed)
	require.Empty(t, dec.Reason)
	require.Equal(t, KindNone, dec.Kind)

	stats := limiter.Stats()
	assert.Equal(t, 0, stats.HourlySent)
	assert.Equal(t, 0, stats.DailySent)
	assert.Equal(t, int64(0), stats.TotalSent)
}

func TestHourlyCeiling(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	limits := Limits{MaxPerHour: 3, MaxPerDay: 100}
	limiter := newTestLimiter(limits, &now)

	for i := 0; i < 3; i++ {
		limiter.Record(fmt.Sprintf("user%d@example.com", i))
	}

	dec := limiter.Check("user4@example.com")
	require.False(t, dec.Allowed)
	require.Equal(t, KindHourlyLimit, dec.Kind)
	require.Contains(t, dec.Reason, "hourly limit")
	require.Contains(t, dec.Reason, "3")
	require.Equal(t, time.Hour, dec.RetryAfter)
}

func TestDailyCeiling(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	limits := Limits{MaxPerHour: 100, MaxPerDay: 5}
	limiter := newTestLimiter(limits, &now)

	for i := 0; i < 5; i++ {
		limiter.Record(fmt.Sprintf("user%d@example.com", i))
	}

	dec := limiter.Check("user6@example.com")
	require.False(t, dec.Allowed)
	require.Equal(t, KindDailyLimit, dec.Kind)
	require.Contains(t, dec.Reason, "daily limit")
	require.Contains(t, dec.Reason, "5")
	require.Equal(t, 14*time.Hour, dec.RetryAfter)
}

func TestHourlyCheckedBeforeDaily(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	limiter := newTestLimiter(Limits{MaxPerHour: 2, MaxPerDay: 2}, &now)

	limiter.Record("")
	limiter.Record("")

	dec := limiter.Check("")
	require.Equal(t, KindHourlyLimit, dec.Kind)
}

func TestRecipientCooldown(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	limits := scenarioLimits()
	limits.MinInterval = 0
	limiter := newTestLimiter(limits, &now)

	limiter.Record("usera@example.com")

	dec := limiter.Check("usera@example.com")
	require.False(t, dec.Allowed)
	require.Equal(t, KindCooldown, dec.Kind)
	require.Contains(t, dec.Reason, "5m 0s")

	other := limiter.Check("userb@example.com")
	require.True(t, other.Allowed)
}

func TestCheckWithoutRecipientSkipsCooldown(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	limits := scenarioLimits()
	limits.MinInterval = 0
	limiter := newTestLimiter(limits, &now)

	limiter.Record("usera@example.com")

	require.True(t, limiter.Check("").Allowed)
}

func TestGlobalMinIntervalIgnoresRecipient(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	limiter := newTestLimiter(scenarioLimits(), &now)

	limiter.Record("a@x")
	now = now.Add(500 * time.Millisecond)
	limiter.Record("b@x")
	now = now.Add(500 * time.Millisecond)

	dec := limiter.Check("c@x")
	require.False(t, dec.Allowed)
	require.Equal(t, KindMinInterval, dec.Kind)
	require.Contains(t, dec.Reason, "1s")
	require.Equal(t, 1500*time.Millisecond, dec.RetryAfter)
}

func TestScenarioHourlyLimitAfterSpacedSends(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	now := start
	limiter := newTestLimiter(scenarioLimits(), &now)

	for i, recipient := range []string{"a@x", "b@x", "c@x"} {
		now = start.Add(time.Duration(i*3) * time.Second)
		require.True(t, limiter.Check(recipient).Allowed, "send %d should be allowed", i)
		limiter.Record(recipient)
	}

	now = start.Add(7 * time.Second)
	dec := limiter.Check("d@x")
	require.False(t, dec.Allowed)
	require.Equal(t, KindHourlyLimit, dec.Kind)
	require.Contains(t, dec.Reason, "hourly limit")
}

func TestScenarioCooldownExpires(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	now := start
	limiter := newTestLimiter(scenarioLimits(), &now)

	limiter.Record("a@x")

	now = start.Add(time.Second)
	dec := limiter.Check("a@x")
	require.False(t, dec.Allowed)
	require.Equal(t, KindCooldown, dec.Kind)
	require.Contains(t, dec.Reason, "4m 59s")
	require.Equal(t, 299*time.Second, dec.RetryAfter)

	now = start.Add(301 * time.Second)
	require.True(t, limiter.Check("a@x").Allowed)
}

func TestScenarioMinInterval(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	now := start
	limiter := newTestLimiter(scenarioLimits(), &now)

	limiter.Record("x@x")

	now = start.Add(time.Second)
	dec := limiter.Check("y@y")
	require.False(t, dec.Allowed)
	require.Equal(t, KindMinInterval, dec.Kind)
	require.Contains(t, dec.Reason, "1s")

	now = start.Add(2500 * time.Millisecond)
	require.True(t, limiter.Check("y@y").Allowed)
}

func TestHourRolloverKeepsDailyCount(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	now := start
	limiter := newTestLimiter(Limits{MaxPerHour: 2, MaxPerDay: 10}, &now)

	limiter.Record("")
	now = start.Add(30 * time.Minute)
	limiter.Record("")
	require.False(t, limiter.Check("").Allowed)

	// Repeated calls inside the window never reset anything.
	now = start.Add(59 * time.Minute)
	require.False(t, limiter.Check("").Allowed)
	stats := limiter.Stats()
	require.Equal(t, 2, stats.HourlySent)
	require.Equal(t, 2, stats.DailySent)

	now = start.Add(time.Hour)
	require.True(t, limiter.Check("").Allowed)
	stats = limiter.Stats()
	assert.Equal(t, 0, stats.HourlySent)
	assert.Equal(t, 2, stats.DailySent)
	assert.Equal(t, 60, stats.HourRemaining)
}

func TestFixedWindowAllowsBoundaryBurst(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	now := start
	limiter := newTestLimiter(Limits{MaxPerHour: 2, MaxPerDay: 10}, &now)

	now = start.Add(59*time.Minute + 59*time.Second)
	limiter.Record("")
	limiter.Record("")
	require.False(t, limiter.Check("").Allowed)

	now = start.Add(time.Hour)
	require.True(t, limiter.Check("").Allowed)
	limiter.Record("")
	limiter.Record("")
	require.Equal(t, 4, limiter.Stats().DailySent)
}

func TestDayRolloverAtLocalMidnight(t *testing.T) {
	now := time.Date(2025, 3, 10, 23, 30, 0, 0, testZone)
	limiter := newTestLimiter(Limits{MaxPerHour: 10, MaxPerDay: 2}, &now)

	limiter.Record("")
	limiter.Record("")
	dec := limiter.Check("")
	require.Equal(t, KindDailyLimit, dec.Kind)
	require.Equal(t, 30*time.Minute, dec.RetryAfter)

	// 00:10 next day: hour window (anchored 23:30) is still open, day is not.
	now = time.Date(2025, 3, 11, 0, 10, 0, 0, testZone)
	require.True(t, limiter.Check("").Allowed)
	stats := limiter.Stats()
	assert.Equal(t, 0, stats.DailySent)
	assert.Equal(t, 2, stats.HourlySent)
	assert.Equal(t, 23, stats.DayRemaining)
}

func TestDayBoundaryUsesConfiguredLocation(t *testing.T) {
	// 16:00 UTC is midnight in UTC+8.
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(Limits{MaxPerHour: 10, MaxPerDay: 1}, &now)

	limiter.Record("")
	require.False(t, limiter.Check("").Allowed)

	now = time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC)
	dec := limiter.Check("")
	require.True(t, dec.Allowed, "midnight in UTC+8 should roll the day: %s", dec.Reason)
}

func TestClearCooldown(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	limits := scenarioLimits()
	limits.MinInterval = 0
	limiter := newTestLimiter(limits, &now)

	limiter.Record("test@example.com")
	require.False(t, limiter.Check("test@example.com").Allowed)

	require.True(t, limiter.ClearCooldown("test@example.com"))
	require.True(t, limiter.Check("test@example.com").Allowed)

	require.False(t, limiter.ClearCooldown("test@example.com"))
	require.False(t, limiter.ClearCooldown("never@example.com"))
}

func TestResetKeepsLifetimeTotals(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	limiter := newTestLimiter(scenarioLimits(), &now)

	for i := 0; i < 3; i++ {
		limiter.Record(fmt.Sprintf("user%d@example.com", i))
	}
	limiter.RecordBlocked()

	limiter.Reset()

	stats := limiter.Stats()
	assert.Equal(t, 0, stats.HourlySent)
	assert.Equal(t, 0, stats.DailySent)
	assert.Equal(t, 0, stats.ActiveCooldowns)
	assert.Equal(t, int64(3), stats.TotalSent)
	assert.Equal(t, int64(1), stats.TotalBlocked)

	// Cooldowns are gone; the global interval still applies since the last
	// send time is not part of the reset.
	now = now.Add(2 * time.Second)
	require.True(t, limiter.Check("user0@example.com").Allowed)
}

func TestStatsCountsRecordAndBlocked(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, testZone)
	now := start
	limiter := newTestLimiter(scenarioLimits(), &now)

	limiter.Record("a@x")
	limiter.RecordBlocked()
	now = start.Add(10 * time.Minute)
	limiter.Record("b@x")
	limiter.RecordBlocked()
	limiter.RecordBlocked()

	stats := limiter.Stats()
	assert.Equal(t, int64(2), stats.TotalSent)
	assert.Equal(t, int64(3), stats.TotalBlocked)
	assert.Equal(t, 1, stats.ActiveCooldowns, "a@x cooled down after 5 minutes")
	assert.Equal(t, 3, stats.HourlyLimit)
	assert.Equal(t, 100, stats.DailyLimit)
	assert.Equal(t, 50, stats.HourRemaining)
	assert.Equal(t, 13, stats.DayRemaining)
}

func TestConcurrentRecordIsExact(t *testing.T) {
	limiter := New(Limits{MaxPerHour: 10000, MaxPerDay: 10000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				limiter.Check(fmt.Sprintf("user%d@example.com", i))
				limiter.Record(fmt.Sprintf("user%d@example.com", i))
				limiter.RecordBlocked()
			}
		}(i)
	}
	wg.Wait()

	stats := limiter.Stats()
	assert.Equal(t, 1000, stats.HourlySent)
	assert.Equal(t, 1000, stats.DailySent)
	assert.Equal(t, int64(1000), stats.TotalSent)
	assert.Equal(t, int64(1000), stats.TotalBlocked)
}

func TestLimitsAccessor(t *testing.T) {
	limiter := New(DefaultLimits)
	require.Equal(t, DefaultLimits, limiter.Limits())
}
