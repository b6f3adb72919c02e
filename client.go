package py4go

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Client sends commands to the interpreter. Implementations are safe for
// concurrent use.
type Client interface {
	// SendCommand writes a complete command frame and returns the reply line.
	// Non-blocking commands wait for the reply with a short timeout and are
	// meant for notices whose outcome does not matter.
	SendCommand(ctx context.Context, command string, blocking bool) (string, error)

	// Shutdown closes every connection. Later sends fail.
	Shutdown()
}

// ClientConfig is shared by the client implementations.
type ClientConfig struct {
	// Address and Port locate the interpreter's callback server.
	Address string
	Port    int

	// AuthToken is presented on every new connection.
	AuthToken string

	// ConnectTimeout bounds dialing; ReadTimeout bounds every reply.
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// MinConnectionTime is the idle cleanup period of the pooled client.
	MinConnectionTime time.Duration
}

func (c ClientConfig) addr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// newCommandKey returns the correlation key that follows a command through
// its send and its single permitted retry. It appears in logs and errors
// only; the wire format has no slot for it.
func newCommandKey() string {
	return uuid.NewString()
}

// retryable reports whether a failed send may be repeated: only failures
// while writing, on connections this side dialed.
func retryable(err error, clientInitiated bool) bool {
	var ne *NetworkError
	return clientInitiated && errors.As(err, &ne) && ne.Phase == ErrorOnSend
}

func withKey(err error, key string) error {
	var ne *NetworkError
	if errors.As(err, &ne) && ne.Key == "" {
		ne.Key = key
	}
	return err
}
