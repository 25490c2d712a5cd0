package ratelimit

import "errors"

// ErrThrottled matches any error returned because the limiter refused a send.
var ErrThrottled = errors.New("email sending throttled")

// ThrottledError carries the refusing decision. It is distinct from delivery
// failures so callers can tell "blocked by policy" from "transport error".
type ThrottledError struct {
	Decision Decision
}

func (e *ThrottledError) Error() string {
	return ErrThrottled.Error() + ": " + e.Decision.Reason
}

// Is reports ErrThrottled as a match.
func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

// IsThrottled reports whether err came from a limiter refusal.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// AsThrottled extracts the ThrottledError from err, if any.
func AsThrottled(err error) (*ThrottledError, bool) {
	var te *ThrottledError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// Call runs fn under the limiter. A refusal is counted as blocked and returned
// as a *ThrottledError without calling fn. The send is recorded only when fn
// returns a nil error; otherwise fn's error is returned unchanged.
func Call[T any](r *RateLimiter, recipient string, fn func() (T, error)) (T, error) {
	var zero T

	dec := r.Check(recipient)
	if !dec.Allowed {
		r.RecordBlocked()
		return zero, &ThrottledError{Decision: dec}
	}

	result, err := fn()
	if err != nil {
		return result, err
	}

	r.Record(recipient)
	return result, nil
}

// Do is Call for send functions that only return an error.
func (r *RateLimiter) Do(recipient string, send func() error) error {
	_, err := Call(r, recipient, func() (struct{}, error) {
		return struct{}{}, send()
	})
	return err
}
