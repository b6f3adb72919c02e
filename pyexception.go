package py4go

import (
	"strings"
)

// PythonException is an exception reported by a launched interpreter on its
// status pipe.
type PythonException struct {
	// Exception is the exception class name, e.g. "ValueError".
	Exception string `msgpack:"exception"`

	// Message is str() of the exception.
	Message string `msgpack:"message"`

	// Traceback is the formatted traceback.
	Traceback string `msgpack:"traceback"`

	// Args are the exception's args, when they could be encoded.
	Args []interface{} `msgpack:"args,omitempty"`

	// Cause is the exception this one was raised from, if any.
	Cause *PythonException `msgpack:"cause,omitempty"`
}

func (e *PythonException) Error() string {
	return e.Exception + ": " + e.Message
}

// Unwrap returns the cause so errors.As can walk the chain.
func (e *PythonException) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// ToString renders the exception, its traceback and its causes.
func (e *PythonException) ToString() string {
	var b strings.Builder
	for ex := e; ex != nil; ex = ex.Cause {
		if ex != e {
			b.WriteString("\nCaused by: ")
		}
		b.WriteString(ex.Exception)
		b.WriteString(": ")
		b.WriteString(ex.Message)
		if ex.Traceback != "" {
			b.WriteString("\n")
			b.WriteString(ex.Traceback)
		}
	}
	return b.String()
}
