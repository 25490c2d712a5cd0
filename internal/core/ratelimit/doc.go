// Package ratelimit throttles outbound email volume for a single process.
//
// A RateLimiter enforces four independent constraints on every prospective
// send, evaluated in this order (the first failing one wins):
//
//   - Hourly ceiling: at most MaxPerHour sends inside the current hour window.
//   - Daily ceiling: at most MaxPerDay sends inside the current calendar day.
//   - Recipient cooldown: the same recipient must wait Cooldown between two
//     successful sends.
//   - Global minimum interval: any two successful sends, whatever the
//     recipient, are spaced by at least MinInterval.
//
// Callers ask first and record afterwards:
//
//	dec := limiter.Check(recipient)
//	if !dec.Allowed {
//		limiter.RecordBlocked()
//		return dec.Reason
//	}
//	if err := deliver(); err != nil {
//		return err // nothing recorded
//	}
//	limiter.Record(recipient)
//
// Do and Call wrap that sequence around an arbitrary send function and return
// a *ThrottledError (matching ErrThrottled) when the limiter refuses.
//
// # Windows
//
// Both counting windows are fixed, not sliding. Rollover happens lazily at the
// start of Check, Record and Stats: the hour window resets to zero and
// re-anchors at "now" once an hour has elapsed since its start, and the day
// window resets once the local calendar date has advanced, re-anchoring at
// local midnight. A burst of MaxPerHour sends at the end of one hour window
// followed by another burst at the start of the next is therefore permitted.
//
// # Concurrency
//
// A RateLimiter is safe for concurrent use. Every operation holds a single
// mutex for its whole duration, rollover included, so two goroutines can never
// both reset a window and increment from zero. Do and Call do not hold the lock
// while the send function runs.
//
// State lives in process memory only. Several replicas of a service each
// enforce their own limits.
package ratelimit
