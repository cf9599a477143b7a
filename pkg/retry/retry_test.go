package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsAtMaxAttempts(t *testing.T) {
	calls := 0
	var retried []int
	err := RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		calls++
		return errors.New("down")
	}, func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	})

	assert.EqualError(t, err, "down")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryStopsOnFatalError(t *testing.T) {
	calls := 0
	cause := errors.New("bad request")
	err := Retry(context.Background(), fastPolicy(5), func() error {
		calls++
		return NewFatalError(cause)
	})

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastPolicy(5), func() error {
		calls++
		return errors.New("down")
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestRetryElapsedLimitStopsEarly(t *testing.T) {
	p := fastPolicy(1000)
	p.InitialInterval = 5 * time.Millisecond
	p.MaxInterval = 5 * time.Millisecond
	p.MaxElapsedTime = 20 * time.Millisecond

	calls := 0
	err := Retry(context.Background(), p, func() error {
		calls++
		return errors.New("down")
	})

	assert.Error(t, err)
	assert.Less(t, calls, 1000)
}
