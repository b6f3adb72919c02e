package py4go

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/richinsley/py4go/protocol"
	"github.com/richinsley/py4go/reflection"
)

// Error kinds shared with the subpackages.
type (
	ProtocolError   = protocol.ProtocolError
	EngineError     = reflection.EngineError
	InvocationError = reflection.InvocationError
)

// AuthenticationError means a peer presented a missing or wrong token.
type AuthenticationError struct {
	Msg string
}

func (e *AuthenticationError) Error() string {
	return "authentication error: " + e.Msg
}

// NetworkPhase tells at which point of a round trip a network error happened.
type NetworkPhase int

const (
	OtherPhase NetworkPhase = iota
	ErrorOnSend
	ErrorOnReceive
)

func (p NetworkPhase) String() string {
	switch p {
	case ErrorOnSend:
		return "send"
	case ErrorOnReceive:
		return "receive"
	}
	return "other"
}

// NetworkError wraps an I/O failure on a gateway or callback connection. Key
// is the correlation key of the command that was in flight, if any.
type NetworkError struct {
	Phase NetworkPhase
	Key   string
	Cause error
}

func (e *NetworkError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("network error on %s (command %s): %v", e.Phase, e.Key, e.Cause)
	}
	return fmt.Sprintf("network error on %s: %v", e.Phase, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// RemoteError is an error reply received from the interpreter.
type RemoteError struct {
	Command string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("error while calling %s on the interpreter: %s", e.Command, e.Message)
}

// Throwable is what a failed host call leaves in the registry. The interpreter
// reaches it through the reference in the error reply.
type Throwable struct {
	err error
}

// NewThrowable wraps err for registration.
func NewThrowable(err error) *Throwable {
	return &Throwable{err: err}
}

func (t *Throwable) Error() string { return t.err.Error() }

func (t *Throwable) Unwrap() error { return t.err }

// GetMessage returns the message of the root cause.
func (t *Throwable) GetMessage() string {
	root := t.err
	for inner := errors.Unwrap(root); inner != nil; inner = errors.Unwrap(root) {
		root = inner
	}
	return root.Error()
}

// ToString returns the full message chain.
func (t *Throwable) ToString() string {
	return t.err.Error()
}

// GetCause returns the wrapped cause, or nil.
func (t *Throwable) GetCause() *Throwable {
	if inner := errors.Unwrap(t.err); inner != nil {
		return &Throwable{err: inner}
	}
	return nil
}

// StackTrace renders the error with the stack recorded where it was wrapped.
func (t *Throwable) StackTrace() string {
	return fmt.Sprintf("%+v", t.err)
}

// Format supports %+v for the stack trace.
func (t *Throwable) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%+v", t.err)
		return
	}
	io.WriteString(s, t.err.Error())
}

// isFatal reports errors after which a connection cannot continue.
func isFatal(err error) bool {
	var pe *ProtocolError
	var ae *AuthenticationError
	var ne *NetworkError
	return errors.As(err, &pe) || errors.As(err, &ae) || errors.As(err, &ne)
}
