package errors

import (
	"fmt"
	"runtime/debug"
)

// ErrPanic wraps a recovered panic from a handler or middleware.
var ErrPanic = NewError("PANIC", "panic during dispatch").AsFatal()

// RecoverPanic converts a recovered panic value into a fatal coded error
// carrying the stack trace.
func RecoverPanic(r interface{}) error {
	if r == nil {
		return nil
	}

	var err error
	switch v := r.(type) {
	case error:
		err = v
	case string:
		err = fmt.Errorf("panic: %s", v)
	default:
		err = fmt.Errorf("panic: %v", v)
	}

	return ErrPanic.
		WithCause(err).
		WithDetail("stack_trace", string(debug.Stack()))
}
