package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mail2alert/internal/logger"
	"mail2alert/pkg/metrics"
)

type FatalError interface {
	error
	IsFatal() bool
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) IsFatal() bool {
	return true
}

func (e *fatalError) Unwrap() error {
	return e.err
}

// NewFatalError marks err as not worth another attempt.
func NewFatalError(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

func IsFatal(err error) bool {
	var fatalErr FatalError
	return errors.As(err, &fatalErr)
}

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

// FetchPolicy suits polling an HTTP feed whose next tick is only seconds away.
func FetchPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  10 * time.Second,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	// Zero keeps retrying until MaxAttempts.
	exp.MaxElapsedTime = p.MaxElapsedTime

	return backoff.WithMaxRetries(backoff.WithContext(exp, ctx), uint64(p.MaxAttempts-1))
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

// RetryWithCallback retries fn until it succeeds, returns a fatal error, or the
// policy is exhausted. onRetry sees each failed attempt that will be retried.
func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err != nil && IsFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if onRetry != nil {
		notify = func(err error, next time.Duration) {
			onRetry(attempt, err, next)
		}
	}

	return backoff.RetryNotify(operation, policy.backOff(ctx), notify)
}

// Logged returns an onRetry callback that logs and counts retries of operation.
func Logged(ctx context.Context, log logger.Logger, service, operation string) func(int, error, time.Duration) {
	return func(attempt int, err error, next time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(service, operation).Inc()
		log.WarnwCtx(ctx, "Retrying after failure",
			"operation", operation,
			"attempt", attempt,
			"next_delay", next.String(),
			"error", err,
		)
	}
}
