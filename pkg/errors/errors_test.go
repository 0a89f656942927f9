package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByCode(t *testing.T) {
	base := NewError("HANDLER_ERROR", "handler signaled failure")
	derived := base.WithCause(errors.New("boom")).WithDetail("k", "v")

	assert.ErrorIs(t, derived, ErrHandler)
	assert.NotErrorIs(t, derived, ErrUnhandledMessage)
}

func TestError_IsSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", ErrMultipleConsumers.WithDetail("handler", "x"))
	assert.ErrorIs(t, err, ErrMultipleConsumers)
}

func TestError_Classification(t *testing.T) {
	plain := NewError("X", "unclassified")
	assert.True(t, plain.IsRetryable(), "unclassified errors default retryable")
	assert.False(t, plain.IsFatal())

	fatal := plain.AsFatal()
	assert.True(t, fatal.IsFatal())
	assert.False(t, fatal.IsRetryable())

	// AsFatal copies; the original stays retryable.
	assert.True(t, plain.IsRetryable())

	assert.True(t, fatal.AsRetryable().IsRetryable())
}

func TestError_FatalityInheritsFromCause(t *testing.T) {
	wrapped := NewError("WRAP", "wrapping").WithCause(ErrUnhandledMessage)
	assert.True(t, wrapped.IsFatal())

	wrappedRetryable := NewError("WRAP", "wrapping").WithCause(ErrHandler)
	assert.False(t, wrappedRetryable.IsFatal())
}

func TestError_WithDetailCopies(t *testing.T) {
	base := NewError("X", "msg").WithDetail("a", 1)
	derived := base.WithDetail("b", 2)

	assert.Len(t, base.Details, 1)
	assert.Len(t, derived.Details, 2)
	assert.Equal(t, 1, derived.Details["a"])
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrHandler.WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "HANDLER_ERROR")
	assert.Contains(t, err.Error(), "root cause")
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrHandler))

	cause := errors.New("boom")
	wrapped := Wrap(cause, ErrRejected)
	require.NotNil(t, wrapped)
	assert.ErrorIs(t, wrapped, ErrRejected)
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, IsFatal(wrapped))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.False(t, IsFatal(ErrHandler))
	assert.True(t, IsFatal(ErrUnhandledMessage))
	assert.True(t, IsFatal(fmt.Errorf("outer: %w", ErrNotRunning)))
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("exploded")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPanic)
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "exploded")

	cause := errors.New("original")
	err = RecoverPanic(cause)
	assert.ErrorIs(t, err, cause)

	var coded *Error
	require.ErrorAs(t, err, &coded)
	assert.NotEmpty(t, coded.Details["stack_trace"])
}
