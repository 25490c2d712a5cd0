// Package scheduler runs the daily birthday job, either once on demand or on
// a cron schedule at the configured local send time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/wishmail/wishmail/internal/core"
	"github.com/wishmail/wishmail/internal/core/ratelimit"
	"github.com/wishmail/wishmail/internal/mailer"
	"github.com/wishmail/wishmail/internal/metrics"
	"github.com/wishmail/wishmail/internal/observability"
)

// Triggers label job runs in logs and metrics.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// maxPacingWaits bounds how often one recipient may wait out the global
// minimum interval before being logged as throttled.
const maxPacingWaits = 3

// BirthdayStore is the persistence the job needs.
type BirthdayStore interface {
	TodaysBirthdays(ctx context.Context, day time.Time) ([]core.User, error)
	RandomWish(ctx context.Context) (string, error)
	RecordSend(ctx context.Context, userID int64, status core.SendStatus, errMsg string, at time.Time) error
}

// Sender delivers one greeting. Check reports, without counting a refusal,
// whether a send to recipient would pass the limiter right now.
type Sender interface {
	Check(recipient string) ratelimit.Decision
	SendGreeting(ctx context.Context, g mailer.Greeting) error
}

// Job scans today's birthdays and greets each user once per year.
type Job struct {
	store    BirthdayStore
	sender   Sender
	location *time.Location
	logger   *logging.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// JobOption configures a Job.
type JobOption func(*Job)

// WithJobClock injects the time source.
func WithJobClock(now func() time.Time) JobOption {
	return func(j *Job) {
		if now != nil {
			j.now = now
		}
	}
}

// WithJobLocation sets the zone that defines "today".
func WithJobLocation(loc *time.Location) JobOption {
	return func(j *Job) {
		if loc != nil {
			j.location = loc
		}
	}
}

// WithJobLogger overrides the process logger.
func WithJobLogger(logger *logging.Logger) JobOption {
	return func(j *Job) {
		if logger != nil {
			j.logger = logger
		}
	}
}

func withSleep(sleep func(ctx context.Context, d time.Duration) error) JobOption {
	return func(j *Job) { j.sleep = sleep }
}

// NewJob builds a Job.
func NewJob(store BirthdayStore, sender Sender, opts ...JobOption) (*Job, error) {
	if store == nil {
		return nil, errors.New("birthday store is required")
	}
	if sender == nil {
		return nil, errors.New("greeting sender is required")
	}

	j := &Job{
		store:    store,
		sender:   sender,
		location: time.Local,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = observability.Logger()
	}
	return j, nil
}

// Run greets every user whose birthday is today in the job's location.
// Per-user failures are logged and counted, never returned; the error is
// reserved for failures that stop the scan itself.
func (j *Job) Run(ctx context.Context, trigger string) (core.JobResult, error) {
	start := j.now()
	today := start.In(j.location)
	result := core.JobResult{Date: today.Format(core.DateLayout)}

	j.logger.Info("Daily greeting job started",
		zap.String("trigger", trigger),
		zap.String("date", result.Date))

	users, err := j.store.TodaysBirthdays(ctx, today)
	if err != nil {
		metrics.RecordJobRun(trigger, false, j.now().Sub(start))
		return result, fmt.Errorf("scan birthdays: %w", err)
	}
	result.Candidates = len(users)

	if len(users) == 0 {
		j.logger.Info("No birthdays today", zap.String("date", result.Date))
	}

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			result.Duration = j.now().Sub(start)
			metrics.RecordJobRun(trigger, false, result.Duration)
			return result, err
		}

		status, errMsg := j.greet(ctx, user)
		switch status {
		case core.SendStatusSuccess:
			result.Sent++
		case core.SendStatusThrottled:
			result.Throttled++
		default:
			result.Failed++
		}

		if err := j.store.RecordSend(ctx, user.ID, status, errMsg, j.now().In(j.location)); err != nil {
			j.logger.Error("Failed to record send status",
				zap.Int64("user_id", user.ID),
				zap.String("status", string(status)),
				zap.Error(err))
		}
	}

	result.Duration = j.now().Sub(start)
	metrics.RecordJobRun(trigger, true, result.Duration)
	metrics.RecordJobRecipients(result.Sent, result.Failed, result.Throttled)

	j.logger.Info("Daily greeting job finished",
		zap.String("trigger", trigger),
		zap.Int("candidates", result.Candidates),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("throttled", result.Throttled),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// greet sends to one user. The global minimum interval is waited out before
// sending, so pacing never counts as a blocked send. Every other refusal is
// final for this run.
func (j *Job) greet(ctx context.Context, user core.User) (core.SendStatus, string) {
	wish, err := j.store.RandomWish(ctx)
	if err != nil {
		j.logger.Warn("Falling back to default wish", zap.Error(err))
		wish = core.DefaultWish
	}

	greeting := mailer.Greeting{Name: user.Name, Email: user.Email, Wish: wish}

	for attempt := 0; ; attempt++ {
		if err := j.pace(ctx, user.Email); err != nil {
			return core.SendStatusThrottled, "pacing interrupted: " + err.Error()
		}

		err = j.sender.SendGreeting(ctx, greeting)
		if err == nil {
			return core.SendStatusSuccess, ""
		}

		te, throttled := ratelimit.AsThrottled(err)
		if !throttled {
			return core.SendStatusFailed, err.Error()
		}
		if te.Decision.Kind != ratelimit.KindMinInterval || attempt >= maxPacingWaits {
			return core.SendStatusThrottled, te.Decision.Reason
		}
		if err := j.sleep(ctx, te.Decision.RetryAfter); err != nil {
			return core.SendStatusThrottled, te.Decision.Reason
		}
	}
}

// pace sleeps while the limiter's only objection is the minimum interval.
func (j *Job) pace(ctx context.Context, recipient string) error {
	for i := 0; i < maxPacingWaits; i++ {
		dec := j.sender.Check(recipient)
		if dec.Allowed || dec.Kind != ratelimit.KindMinInterval {
			return nil
		}
		if err := j.sleep(ctx, dec.RetryAfter); err != nil {
			return err
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
