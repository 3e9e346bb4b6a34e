// internal/common/retry/policy.go
package retry

import (
	"context"
	"time"
)

// Policy is an explicit retry policy: max attempts, base delay, multiplier,
// and a retryable-error predicate. The delay is a pure function of the
// attempt number.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	// RetryIf decides whether an error is worth another attempt. A nil
	// predicate retries everything.
	RetryIf func(error) bool
}

// Delay returns the backoff delay before attempt n (1-based). Attempt 1 has
// no delay; attempt 2 waits BaseDelay, attempt 3 BaseDelay*Multiplier, etc.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := float64(p.BaseDelay)
	for i := 2; i < attempt; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// Do runs op up to MaxAttempts times, sleeping the policy delay between
// attempts. It stops early on success, on a non-retryable error, or when the
// context is done; an abandoned attempt counts as failed for backoff
// purposes. The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if p.RetryIf != nil && !p.RetryIf(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}
