package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrHandler marks a declared handler error: an expected-but-exceptional
	// outcome the handler signals explicitly. It propagates to the transport
	// unchanged so the broker layer can nack or retry.
	ErrHandler = NewError("HANDLER_ERROR", "handler signaled failure")

	// ErrMultipleConsumers reports that two handler items matched the same
	// delivery. Overlapping filters are a configuration bug, never a
	// broker-retryable condition.
	ErrMultipleConsumers = NewError("MULTIPLE_CONSUMERS", "message matched more than one handler").AsFatal()

	// ErrUnhandledMessage reports that no handler item consumed a delivery on
	// a running subscription, meaning no registered filter covers this
	// message shape.
	ErrUnhandledMessage = NewError("UNHANDLED_MESSAGE", "no handler consumed the message").AsFatal()

	// ErrNotRunning is returned by operations that require a started
	// subscription.
	ErrNotRunning = NewError("NOT_RUNNING", "subscription is not running").AsFatal()

	// ErrRejected wraps a failure the watcher decided is terminal, so the
	// transport retry loop stops redelivering.
	ErrRejected = NewError("REJECTED", "watcher decided terminal failure").AsFatal()
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

// Error is the coded error carried across the dispatch pipeline. The zero
// classification treats an error as retryable; AsFatal pins it terminal.
type Error struct {
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	retryable *bool
}

func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches two coded errors by code, so sentinel comparisons survive
// WithCause/WithDetail copies.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func (e *Error) IsRetryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	if e.Cause != nil {
		var fatalErr FatalError
		if errors.As(e.Cause, &fatalErr) {
			return !fatalErr.IsFatal()
		}
	}
	return true
}

func (e *Error) IsFatal() bool {
	return !e.IsRetryable()
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	if err.Details == nil {
		err.Details = make(map[string]interface{})
	} else {
		details := make(map[string]interface{}, len(err.Details)+1)
		for k, v := range err.Details {
			details[k] = v
		}
		err.Details = details
	}
	err.Details[key] = value
	return &err
}

func (e *Error) AsRetryable() *Error {
	err := *e
	retryable := true
	err.retryable = &retryable
	return &err
}

func (e *Error) AsFatal() *Error {
	err := *e
	retryable := false
	err.retryable = &retryable
	return &err
}

// Wrap attaches err as the cause of the given coded error. Returns nil when
// err is nil so call sites can wrap unconditionally.
func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

// IsFatal reports whether err is pinned terminal anywhere in its chain.
func IsFatal(err error) bool {
	var fatalErr FatalError
	if errors.As(err, &fatalErr) {
		return fatalErr.IsFatal()
	}
	return false
}
