// internal/common/retry/policy_test.go
package retry

import (
	"context"
	"testing"
	"time"

	"content-scheduler/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2.0,
		RetryIf:     errors.IsRetryable,
	}
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: time.Second, Multiplier: 2.0}

	assert.Equal(t, time.Duration(0), p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))
	assert.Equal(t, 4*time.Second, p.Delay(4))
}

func TestPolicy_Do_SucceedsAfterRetryableFailures(t *testing.T) {
	p := testPolicy()
	attempts := 0

	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.NewGenerationTimeoutError("deadline exceeded")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPolicy_Do_StopsOnNonRetryableError(t *testing.T) {
	p := testPolicy()
	attempts := 0

	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.NewGenerationFailedError("bad content type")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, errors.IsCode(err, errors.ErrCodeGenerationFailed))
}

func TestPolicy_Do_ExhaustsAttempts(t *testing.T) {
	p := testPolicy()
	attempts := 0

	err := p.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.NewGenerationThrottledError(429, "rate limited")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, errors.IsRetryable(err))
}

func TestPolicy_Do_RespectsContextCancellation(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour, Multiplier: 2.0, RetryIf: errors.IsRetryable}
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func(ctx context.Context) error {
		attempts++
		return errors.NewGenerationTimeoutError("timeout")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
