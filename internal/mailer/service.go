// Package mailer renders birthday greetings and delivers them through a
// Transport, gated by the shared rate limiter.
package mailer

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/wishmail/wishmail/internal/core/ratelimit"
	"github.com/wishmail/wishmail/internal/metrics"
	"github.com/wishmail/wishmail/internal/observability"
)

const (
	// TestRecipientName and TestWish fill the manual test greeting.
	TestRecipientName = "测试用户"
	TestWish          = "这是一封测试邮件。您的生日祝福系统已配置成功！"
)

// Service sends greetings. Every delivery passes through the limiter: a
// refusal returns a *ratelimit.ThrottledError without touching the transport,
// and only successful deliveries count against the windows.
type Service struct {
	transport Transport
	limiter   *ratelimit.RateLimiter
	fromName  string
	fromAddr  string
	logger    *logging.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSender sets the From display name and address.
func WithSender(name, addr string) Option {
	return func(s *Service) {
		s.fromName = name
		s.fromAddr = addr
	}
}

// WithLogger overrides the process logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires a transport to the limiter.
func NewService(transport Transport, limiter *ratelimit.RateLimiter, opts ...Option) (*Service, error) {
	if transport == nil {
		return nil, errors.New("mail transport is required")
	}
	if limiter == nil {
		return nil, errors.New("rate limiter is required")
	}

	s := &Service{
		transport: transport,
		limiter:   limiter,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.Logger()
	}
	return s, nil
}

// Limiter exposes the limiter the service records against.
func (s *Service) Limiter() *ratelimit.RateLimiter {
	return s.limiter
}

// Check asks the limiter whether a send to recipient would be allowed. It
// records nothing, so callers can pace themselves without inflating the
// blocked count.
func (s *Service) Check(recipient string) ratelimit.Decision {
	return s.limiter.Check(recipient)
}

// SendGreeting renders and delivers g. The returned error is nil, a
// *ratelimit.ThrottledError, or the transport's error.
func (s *Service) SendGreeting(ctx context.Context, g Greeting) error {
	rendered, err := Render(g, s.fromName)
	if err != nil {
		return err
	}

	msg := Message{
		FromName: s.fromName,
		FromAddr: s.fromAddr,
		ToName:   g.Name,
		ToAddr:   g.Email,
		Subject:  rendered.Subject,
		Text:     rendered.Text,
		HTML:     rendered.HTML,
	}

	var elapsed time.Duration
	err = s.limiter.Do(g.Email, func() error {
		start := s.now()
		sendErr := s.transport.Send(ctx, msg)
		elapsed = s.now().Sub(start)
		return sendErr
	})

	s.observe(g, elapsed, err)
	return err
}

// SendTest delivers the fixed test greeting to email.
func (s *Service) SendTest(ctx context.Context, email string) error {
	return s.SendGreeting(ctx, Greeting{
		Name:  TestRecipientName,
		Email: email,
		Wish:  TestWish,
	})
}

func (s *Service) observe(g Greeting, elapsed time.Duration, err error) {
	defer func() {
		stats := s.limiter.Stats()
		metrics.RecordLimiterState(stats.HourlySent, stats.DailySent, stats.ActiveCooldowns)
	}()

	if te, ok := ratelimit.AsThrottled(err); ok {
		metrics.RecordThrottled(string(te.Decision.Kind))
		s.logger.Warn("Greeting throttled",
			zap.String("recipient", g.Email),
			zap.String("kind", string(te.Decision.Kind)),
			zap.String("reason", te.Decision.Reason),
			zap.Duration("retry_after", te.Decision.RetryAfter))
		return
	}

	metrics.RecordSend(err == nil, elapsed)
	if err != nil {
		s.logger.Error("Greeting delivery failed",
			zap.String("recipient", g.Email),
			zap.String("name", g.Name),
			zap.Error(err))
		return
	}

	s.logger.Info("Greeting sent",
		zap.String("recipient", g.Email),
		zap.String("name", g.Name),
		zap.Duration("duration", elapsed))
}
