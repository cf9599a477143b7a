package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesCode(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := fmt.Errorf("rule 3: %w", ErrConfiguration.WithCause(cause).WithDetail("function", "x.y"))

	assert.True(t, stderrors.Is(err, ErrConfiguration))
	assert.False(t, stderrors.Is(err, ErrTransport))
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, IsConfiguration(err))
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	_ = ErrAction.WithDetail("action", "fax:123")
	assert.Empty(t, ErrAction.Details)
}

func TestWithMessage(t *testing.T) {
	err := ErrConfiguration.WithMessage("unknown namespace %q", "foo")
	assert.Equal(t, `CONFIGURATION_ERROR: unknown namespace "foo"`, err.Error())
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadGateway, ToHTTPStatus(ErrTransport.WithCause(fmt.Errorf("dial"))))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(fmt.Errorf("plain")))
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("bad")
	assert.ErrorContains(t, err, "panic: bad")

	var appErr *Error
	assert.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, true, appErr.Details["panic"])
}
