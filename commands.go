package py4go

import (
	"bufio"
	"context"
	"sort"
	"sync"

	"github.com/richinsley/py4go/protocol"
	"github.com/richinsley/py4go/reflection"
)

// Request is what a command handler sees: the connection's buffered reader
// positioned after the command code, the writer for the reply, and the
// per-worker state.
type Request struct {
	// Code is the command code that selected the handler.
	Code string

	// Reader yields the remaining lines of the command, up to and including
	// the end marker.
	Reader *bufio.Reader

	// Writer receives the reply. Reply and ReplyObject flush it.
	Writer *bufio.Writer

	// Gateway is the shared object registry.
	Gateway *Gateway

	// Cache memoizes overload resolution for this worker only.
	Cache *reflection.ResolutionCache

	// Conn is the connection executing the command. It is nil when a handler
	// is driven directly, as tests do.
	Conn *GatewayConnection

	// Server is the owning server, if any.
	Server *GatewayServer

	// AuthToken is the token peers must present, or empty.
	AuthToken string

	turn *sendTurn
}

// ReadLine reads one argument line.
func (r *Request) ReadLine() (string, error) {
	return protocol.ReadLine(r.Reader)
}

// ReadArgs reads argument lines up to the end marker.
func (r *Request) ReadArgs() ([]string, error) {
	return protocol.ReadArgs(r.Reader)
}

// ReadEnd consumes the end marker.
func (r *Request) ReadEnd() error {
	return protocol.ReadEnd(r.Reader)
}

// DecodeArgs reads the remaining argument lines and resolves them.
func (r *Request) DecodeArgs() ([]interface{}, error) {
	parts, err := r.ReadArgs()
	if err != nil {
		return nil, err
	}
	return r.Gateway.DecodeArgs(parts)
}

// Reply writes a complete reply line and flushes it.
func (r *Request) Reply(line string) error {
	r.turn.expire()
	if _, err := r.Writer.WriteString(line); err != nil {
		return &NetworkError{Phase: ErrorOnSend, Cause: err}
	}
	if err := r.Writer.Flush(); err != nil {
		return &NetworkError{Phase: ErrorOnSend, Cause: err}
	}
	return nil
}

// ReplyObject writes ro as the reply.
func (r *Request) ReplyObject(ro ReturnObject) error {
	return r.Reply(ro.Reply())
}

// ReplyError writes an error reply for err.
func (r *Request) ReplyError(err error) error {
	return r.ReplyObject(r.Gateway.ErrorReturn(err))
}

// CommandHandler executes one command. It must consume the command's
// arguments through the end marker and write exactly one reply, except for
// commands whose protocol says otherwise.
//
// A returned error that is a ProtocolError, AuthenticationError or
// NetworkError ends the connection. Any other error is sent back as an error
// reply and the connection continues.
type CommandHandler func(ctx context.Context, req *Request) error

// CommandRegistry maps command codes to handlers. A server builds one at
// construction and shares it, read-only, with every connection.
type CommandRegistry struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
}

// NewCommandRegistry returns an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{handlers: make(map[string]CommandHandler)}
}

// BaseCommands returns a registry holding every standard command.
func BaseCommands() *CommandRegistry {
	r := NewCommandRegistry()
	r.Register(protocol.CallCommand, CallCommand)
	r.Register(protocol.ConstructorCommand, ConstructorCommand)
	r.Register(protocol.FieldCommand, FieldCommand)
	r.Register(protocol.ArrayCommand, ArrayCommand)
	r.Register(protocol.ReflectionCommand, ReflectionCommand)
	r.Register(protocol.JVMViewCommand, JVMViewCommand)
	r.Register(protocol.MemoryCommand, MemoryCommand)
	r.Register(protocol.HelpCommand, HelpCommand)
	r.Register(protocol.ExceptionCommand, ExceptionCommand)
	r.Register(protocol.StreamCommand, StreamCommand)
	r.Register(protocol.AuthCommand, AuthCommand)
	r.Register(protocol.ShutdownCommand, ShutdownCommand)
	r.Register(protocol.ListCommand, ListCommand)
	r.Register(protocol.DirCommand, DirCommand)
	return r
}

// Register binds handler to code, replacing any previous binding.
func (r *CommandRegistry) Register(code string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[code] = handler
}

// Lookup returns the handler bound to code.
func (r *CommandRegistry) Lookup(code string) (CommandHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[code]
	return h, ok
}

// Codes returns the registered codes in sorted order.
func (r *CommandRegistry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.handlers))
	for c := range r.handlers {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Clone returns an independent copy.
func (r *CommandRegistry) Clone() *CommandRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := NewCommandRegistry()
	for code, h := range r.handlers {
		c.handlers[code] = h
	}
	return c
}
