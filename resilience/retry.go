package resilience

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrAttemptsExhausted is returned when every attempt has failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// RetryPolicy configures retry behavior.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the unit of the exponential schedule: the wait before
	// attempt n+1 is BaseDelay * 2^n.
	BaseDelay time.Duration
	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration
	// RetryIf decides whether an error is worth retrying. Defaults to
	// retrying everything except context cancellation.
	RetryIf func(error) bool
	// OnRetry is called before each wait with the 1-based attempt number
	// that just failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryPolicy returns the engine's standard schedule: base 1s,
// doubling per attempt, capped at 30s.
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// DefaultRetryIf retries all errors except context cancellation.
func DefaultRetryIf(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Do executes fn under the policy. The attempt index passed to fn is
// zero-based. Returns fn's result, or the last error once attempts are
// exhausted or RetryIf declines.
func Do[T any](ctx context.Context, p RetryPolicy, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.RetryIf == nil {
		p.RetryIf = DefaultRetryIf
	}

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !p.RetryIf(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// Backoff returns the wait after the given zero-based attempt:
// BaseDelay * 2^attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}
