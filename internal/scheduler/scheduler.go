package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/wishmail/wishmail/internal/core"
	"github.com/wishmail/wishmail/internal/observability"
)

// Runner is the work the scheduler triggers.
type Runner interface {
	Run(ctx context.Context, trigger string) (core.JobResult, error)
}

// Scheduler fires a Runner once a day at a local wall-clock time. A trigger
// that arrives while the previous run is still going is skipped.
type Scheduler struct {
	runner   Runner
	cron     *cron.Cron
	entry    cron.EntryID
	spec     string
	location *time.Location
	logger   *logging.Logger

	mu         sync.Mutex
	ctx        context.Context
	lastResult *core.JobResult
	lastErr    error
	lastRun    time.Time
}

// New schedules runner daily at hour:minute in loc.
func New(runner Runner, hour, minute int, loc *time.Location, logger *logging.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid send time %02d:%02d", hour, minute)
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = observability.Logger()
	}

	s := &Scheduler{
		runner:   runner,
		spec:     fmt.Sprintf("%d %d * * *", minute, hour),
		location: loc,
		logger:   logger,
		ctx:      context.Background(),
	}

	adapter := cronLogger{logger: logger}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)

	entry, err := s.cron.AddFunc(s.spec, s.fire)
	if err != nil {
		return nil, fmt.Errorf("schedule daily job: %w", err)
	}
	s.entry = entry
	return s, nil
}

// Start begins firing. Runs use ctx, so cancelling it aborts an in-flight run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Daily job scheduled",
		zap.String("cron", s.spec),
		zap.String("timezone", s.location.String()),
		zap.Time("next_run", s.Next()))
}

// Stop halts the schedule and returns a context that is done once any
// running job has returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the next scheduled fire time, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Spec returns the cron expression in use.
func (s *Scheduler) Spec() string {
	return s.spec
}

// LastRun reports the most recent run, if any.
func (s *Scheduler) LastRun() (at time.Time, result *core.JobResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastResult, s.lastErr
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	result, err := s.runner.Run(ctx, TriggerSchedule)
	if err != nil {
		s.logger.Error("Scheduled job failed", zap.Error(err))
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastResult = &result
	s.lastErr = err
	s.mu.Unlock()
}

// cronLogger routes cron's internal logging through gofulmen.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(kvFields(keysAndValues), zap.Error(err))
	l.logger.Error("cron: "+msg, fields...)
}

func kvFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// NextFire returns the first daily hour:minute in loc strictly after t.
func NextFire(hour, minute int, loc *time.Location, t time.Time) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	schedule, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse send time: %w", err)
	}
	return schedule.Next(t.In(loc)), nil
}
