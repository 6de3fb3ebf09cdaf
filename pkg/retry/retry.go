// Package retry runs remote calls under a bounded-attempt exponential backoff policy.
package retry

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 30 * time.Second
)

// Policy controls how many times a call is attempted and how long to wait in between.
type Policy struct {
	// MaxAttempts counts the initial call. Values below 1 are treated as 1.
	MaxAttempts int

	// BaseDelay is the wait after the first failure. It doubles per attempt.
	BaseDelay time.Duration

	// MaxDelay caps the wait between attempts. Zero means no cap.
	MaxDelay time.Duration

	// Timeout bounds each individual attempt. Zero means the caller's context alone applies.
	Timeout time.Duration

	// OnRetry is invoked after a failed attempt that will be retried.
	// attempt is 1-indexed and names the attempt that just failed.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultPolicy returns 4 attempts starting at 1s and capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Attempts returns the effective attempt count.
func (p Policy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// DelayForAttempt returns the wait after the given failed attempt (0-indexed):
// BaseDelay * 2^attempt, capped at MaxDelay.
func (p Policy) DelayForAttempt(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do calls fn until it succeeds or the policy is exhausted. The error returned after
// exhaustion is the last error fn returned, unwrapped, so callers can inspect it directly.
// Cancelling ctx stops further attempts and also returns the last error.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := p.Attempts()
	for attempt := 0; attempt < attempts; attempt++ {
		value, err := call(ctx, p.Timeout, fn)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt == attempts-1 || ctx.Err() != nil {
			break
		}

		delay := p.DelayForAttempt(attempt)
		if p.OnRetry != nil {
			p.OnRetry(err, attempt+1, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func call[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
