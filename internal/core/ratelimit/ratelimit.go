package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Limits holds the configured ceilings and spacings.
type Limits struct {
	MaxPerHour  int
	MaxPerDay   int
	Cooldown    time.Duration
	MinInterval time.Duration
}

// DefaultLimits mirrors the shipped configuration defaults.
var DefaultLimits = Limits{
	MaxPerHour:  50,
	MaxPerDay:   200,
	Cooldown:    5 * time.Minute,
	MinInterval: 2 * time.Second,
}

// RefusalKind names the constraint that refused a send.
type RefusalKind string

const (
	KindNone        RefusalKind = ""
	KindHourlyLimit RefusalKind = "hourly_limit"
	KindDailyLimit  RefusalKind = "daily_limit"
	KindCooldown    RefusalKind = "recipient_cooldown"
	KindMinInterval RefusalKind = "min_interval"
)

// Decision is the outcome of Check.
type Decision struct {
	Allowed    bool
	Reason     string
	Kind       RefusalKind
	RetryAfter time.Duration
}

// Stats is a point-in-time snapshot of limiter state.
type Stats struct {
	HourlySent  int `json:"hourly_sent"`
	HourlyLimit int `json:"hourly_limit"`
	// HourRemaining is minutes until the hourly window resets, not emails.
	HourRemaining int `json:"hour_remaining"`
	DailySent     int `json:"daily_sent"`
	DailyLimit    int `json:"daily_limit"`
	// DayRemaining is whole hours until local midnight, 0 to 23.
	DayRemaining int `json:"day_remaining"`
	// TotalSent and TotalBlocked survive Reset. TotalBlocked counts refused
	// sends only.
	TotalSent       int64 `json:"total_sent"`
	TotalBlocked    int64 `json:"total_blocked"`
	ActiveCooldowns int   `json:"active_cooldowns"`
}

// Option customizes a RateLimiter.
type Option func(*RateLimiter)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(r *RateLimiter) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLocation sets the time zone used to find calendar-day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(r *RateLimiter) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// RateLimiter enforces hourly, daily, per-recipient and global spacing limits
// on outbound sends.
type RateLimiter struct {
	mu     sync.Mutex
	limits Limits
	clock  func() time.Time
	loc    *time.Location

	hourlyCount int
	dailyCount  int
	hourStart   time.Time
	dayStart    time.Time
	lastSend    time.Time
	lastSentTo  map[string]time.Time

	totalSent    int64
	totalBlocked int64
}

// New constructs a RateLimiter with both windows anchored at the current time.
func New(limits Limits, opts ...Option) *RateLimiter {
	r := &RateLimiter{
		limits:     limits,
		clock:      time.Now,
		loc:        time.Local,
		lastSentTo: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}

	now := r.clock()
	r.hourStart = now
	r.dayStart = r.startOfDay(now)
	return r
}

// Limits returns the configured limits.
func (r *RateLimiter) Limits() Limits {
	return r.limits
}

// Check reports whether a send to recipient is allowed right now. An empty
// recipient skips the cooldown check. Check never changes counters.
func (r *RateLimiter) Check(recipient string) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	r.rollover(now)

	if r.hourlyCount >= r.limits.MaxPerHour {
		return Decision{
			Reason:     fmt.Sprintf("hourly limit reached (%d emails/hour)", r.limits.MaxPerHour),
			Kind:       KindHourlyLimit,
			RetryAfter: nonNegative(r.hourStart.Add(time.Hour).Sub(now)),
		}
	}

	if r.dailyCount >= r.limits.MaxPerDay {
		nextDay := r.startOfDay(now).AddDate(0, 0, 1)
		return Decision{
			Reason:     fmt.Sprintf("daily limit reached (%d emails/day)", r.limits.MaxPerDay),
			Kind:       KindDailyLimit,
			RetryAfter: nonNegative(nextDay.Sub(now)),
		}
	}

	if recipient != "" {
		if last, ok := r.lastSentTo[recipient]; ok {
			if remaining := r.limits.Cooldown - now.Sub(last); remaining > 0 {
				minutes := int(remaining / time.Minute)
				seconds := int((remaining % time.Minute) / time.Second)
				return Decision{
					Reason:     fmt.Sprintf("recipient cooling down, retry in %dm %ds", minutes, seconds),
					Kind:       KindCooldown,
					RetryAfter: remaining,
				}
			}
		}
	}

	if !r.lastSend.IsZero() {
		if remaining := r.limits.MinInterval - now.Sub(r.lastSend); remaining > 0 {
			return Decision{
				Reason:     fmt.Sprintf("send interval too short, retry in %ds", int(remaining/time.Second)),
				Kind:       KindMinInterval,
				RetryAfter: remaining,
			}
		}
	}

	return Decision{Allowed: true}
}

// Record registers a successful send. It does not consult the limits; callers
// are expected to have called Check first.
func (r *RateLimiter) Record(recipient string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	r.rollover(now)

	r.hourlyCount++
	r.dailyCount++
	r.lastSend = now
	r.totalSent++

	if recipient != "" {
		r.lastSentTo[recipient] = now
	}
}

// RecordBlocked counts a send attempt that was refused.
func (r *RateLimiter) RecordBlocked() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalBlocked++
}

// Stats returns a consistent snapshot of the current windows and lifetime
// counters.
func (r *RateLimiter) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	r.rollover(now)

	active := 0
	for _, last := range r.lastSentTo {
		if now.Sub(last) < r.limits.Cooldown {
			active++
		}
	}

	return Stats{
		HourlySent:      r.hourlyCount,
		HourlyLimit:     r.limits.MaxPerHour,
		HourRemaining:   60 - int(now.Sub(r.hourStart)/time.Minute),
		DailySent:       r.dailyCount,
		DailyLimit:      r.limits.MaxPerDay,
		DayRemaining:    23 - now.In(r.loc).Hour(),
		TotalSent:       r.totalSent,
		TotalBlocked:    r.totalBlocked,
		ActiveCooldowns: active,
	}
}

// Reset zeroes both windows and clears every recipient cooldown. Lifetime
// totals are kept.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	r.hourlyCount = 0
	r.dailyCount = 0
	r.hourStart = now
	r.dayStart = r.startOfDay(now)
	clear(r.lastSentTo)
}

// ClearCooldown lifts the cooldown for recipient and reports whether one was
// tracked.
func (r *RateLimiter) ClearCooldown(recipient string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lastSentTo[recipient]; !ok {
		return false
	}
	delete(r.lastSentTo, recipient)
	return true
}

// rollover must be called with mu held.
func (r *RateLimiter) rollover(now time.Time) {
	if now.Sub(r.hourStart) >= time.Hour {
		r.hourlyCount = 0
		r.hourStart = now
	}

	if today := r.startOfDay(now); today.After(r.dayStart) {
		r.dailyCount = 0
		r.dayStart = today
	}
}

func (r *RateLimiter) startOfDay(t time.Time) time.Time {
	local := t.In(r.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
