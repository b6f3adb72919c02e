package reflection

import (
	"fmt"

	"github.com/pkg/errors"
)

// EngineError reports a resolution or conversion failure: no matching
// overload, an impossible conversion, an unknown type or member.
type EngineError struct {
	Msg   string
	Cause error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return e.Msg + ": " + e.Cause.Error()
	}
	return e.Msg
}

func (e *EngineError) Unwrap() error { return e.Cause }

func engineErrorf(format string, args ...interface{}) error {
	return errors.WithStack(&EngineError{Msg: fmt.Sprintf(format, args...)})
}

// InvocationError wraps an error returned or raised by the invoked code.
// Cause keeps the original error, with a stack trace attached.
type InvocationError struct {
	Member string
	Cause  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("error invoking %s: %v", e.Member, e.Cause)
}

func (e *InvocationError) Unwrap() error { return e.Cause }

// Format prints the cause with its stack for %+v.
func (e *InvocationError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "error invoking %s: %+v", e.Member, e.Cause)
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// IsEngineError reports whether err is, or wraps, an EngineError.
func IsEngineError(err error) bool {
	var e *EngineError
	return errors.As(err, &e)
}

// IsInvocationError reports whether err is, or wraps, an InvocationError.
func IsInvocationError(err error) bool {
	var e *InvocationError
	return errors.As(err, &e)
}
