package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	apperrors "mail2alert/pkg/errors"
)

func TestWrapperOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("test-open")
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Hour
	w := NewWrapper(cfg)

	boom := errors.New("boom")
	calls := 0
	fn := func(context.Context) error {
		calls++
		return boom
	}

	assert.ErrorIs(t, w.Call(context.Background(), fn), boom)
	assert.ErrorIs(t, w.Call(context.Background(), fn), boom)
	assert.True(t, w.IsOpen())

	err := w.Call(context.Background(), fn)
	assert.True(t, apperrors.IsTransport(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, calls)
}

func TestWrapperIgnoresCancellation(t *testing.T) {
	cfg := DefaultConfig("test-cancel")
	cfg.ConsecutiveFailures = 1
	w := NewWrapper(cfg)

	err := w.Call(context.Background(), func(context.Context) error { return context.Canceled })

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, w.IsOpen())
}

func TestWrapperRejectsCancelledContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-ctx"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := w.Call(ctx, func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
