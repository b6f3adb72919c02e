package py4go

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/richinsley/py4go/protocol"
	"github.com/richinsley/py4go/reflection"
	"github.com/tliron/commonlog"
)

// DefaultNonBlockingTimeout bounds the wait for a reply to a non-blocking
// command when no read timeout is configured.
const DefaultNonBlockingTimeout = 1000 * time.Millisecond

// ConnectionConfig carries what a connection needs from its server.
type ConnectionConfig struct {
	// Commands is the command table; BaseCommands() when nil.
	Commands *CommandRegistry

	// AuthToken, when set, must be presented by an "A" command before any
	// other command is accepted.
	AuthToken string

	// ReadTimeout bounds every read; zero waits forever.
	ReadTimeout time.Duration

	// CacheSize sizes the per-connection resolution cache.
	CacheSize int

	// Listeners are told when the connection starts, stops or fails.
	Listeners []ConnectionListener

	// Server is the owning server, if any.
	Server *GatewayServer

	// InitiatedFromClient marks connections this side dialed to the
	// interpreter's server; they have no command loop of their own.
	InitiatedFromClient bool
}

// GatewayConnection serves one socket. Its Run loop reads commands and
// executes them in order on a single goroutine. In pinned mode the same
// socket also carries commands sent to the interpreter, so a call into the
// interpreter made while a command executes goes out on the connection that
// received the command, and commands the interpreter sends back while the
// call is pending are executed before the reply is returned.
type GatewayConnection struct {
	gateway  *Gateway
	server   *GatewayServer
	commands *CommandRegistry
	conn     net.Conn
	reader   *bufio.Reader
	writer   *bufio.Writer
	cache    *reflection.ResolutionCache
	session  *Session

	authToken           string
	authenticated       bool
	readTimeout         time.Duration
	initiatedFromClient bool
	listeners           []ConnectionListener

	mu   sync.Mutex
	used bool

	closed    atomic.Bool
	closeOnce sync.Once
	log       commonlog.Logger
}

// NewGatewayConnection wraps conn. Call Run to serve it.
func NewGatewayConnection(conn net.Conn, gateway *Gateway, cfg ConnectionConfig) *GatewayConnection {
	commands := cfg.Commands
	if commands == nil {
		commands = BaseCommands()
	}
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = reflection.DefaultCacheSize
	}
	c := &GatewayConnection{
		gateway:             gateway,
		server:              cfg.Server,
		commands:            commands,
		conn:                conn,
		reader:              bufio.NewReader(conn),
		writer:              bufio.NewWriter(conn),
		cache:               reflection.NewResolutionCache(cacheSize),
		session:             NewSession(),
		authToken:           cfg.AuthToken,
		readTimeout:         cfg.ReadTimeout,
		initiatedFromClient: cfg.InitiatedFromClient,
		listeners:           cfg.Listeners,
		log:                 commonlog.GetLogger("py4go.connection"),
	}
	if !c.initiatedFromClient {
		// an inbound connection serves outbound calls made by its own worker
		c.session.pin(c)
	}
	return c
}

// RemoteAddr returns the peer address.
func (c *GatewayConnection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// InitiatedFromClient reports whether this side dialed the connection.
func (c *GatewayConnection) InitiatedFromClient() bool { return c.initiatedFromClient }

// IsClosed reports whether the connection was shut down.
func (c *GatewayConnection) IsClosed() bool { return c.closed.Load() }

// Session returns the session pinned to this connection's worker.
func (c *GatewayConnection) Session() *Session { return c.session }

// Run serves commands until the peer quits, the connection fails or ctx is
// cancelled.
func (c *GatewayConnection) Run(ctx context.Context) {
	ctx = WithSession(ctx, c.session)
	for _, l := range c.listeners {
		l.ConnectionStarted(c)
	}

	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	reset := false
	defer func() { c.teardown(reset) }()

	for {
		c.setReadDeadline(c.readTimeout)
		code, err := protocol.ReadLine(c.reader)
		if err != nil {
			if isTimeout(err) {
				c.log.Infof("closing %s after read timeout", c.conn.RemoteAddr())
				reset = true
				c.fireError(err)
			} else if !c.closed.Load() && !errors.Is(err, io.EOF) {
				c.log.Debugf("read from %s failed: %v", c.conn.RemoteAddr(), err)
			}
			return
		}
		if code == protocol.Quit {
			return
		}
		var done bool
		done, reset = c.execute(ctx, code)
		if done {
			return
		}
	}
}

// execute runs one command and reports whether the loop must stop and
// whether the socket should be reset rather than closed gracefully.
func (c *GatewayConnection) execute(ctx context.Context, code string) (done bool, reset bool) {
	if c.authToken != "" && !c.authenticated && code != protocol.AuthCommand {
		c.log.Warningf("%s sent %q before authenticating", c.conn.RemoteAddr(), code)
		c.writeLine(protocol.ErrorMessageReply("Authentication error: authentication required."))
		c.fireError(&AuthenticationError{Msg: "command received before authentication"})
		return true, true
	}

	handler, ok := c.commands.Lookup(code)
	if !ok {
		c.log.Warningf("unknown command %q", code)
		if _, err := protocol.ReadArgs(c.reader); err != nil {
			return true, true
		}
		if err := c.writeLine(protocol.ErrorMessageReply("Unknown command: " + code)); err != nil {
			return true, true
		}
		return false, false
	}

	req := &Request{
		Code:      code,
		Reader:    c.reader,
		Writer:    c.writer,
		Gateway:   c.gateway,
		Cache:     c.cache,
		Conn:      c,
		Server:    c.server,
		AuthToken: c.authToken,
		turn:      &sendTurn{conn: c, done: make(chan struct{})},
	}
	err := handler(context.WithValue(ctx, sendTurnKey{}, req.turn), req)
	req.turn.expire()
	defer close(req.turn.done)
	var pe *ProtocolError
	switch {
	case err == nil:
		return false, false
	case errors.Is(err, errConnectionDone):
		return true, false
	case errors.As(err, &pe):
		c.log.Errorf("protocol error on %s: %v", c.conn.RemoteAddr(), err)
		c.writeLine(protocol.FatalReply(err.Error()))
		c.fireError(err)
		return true, true
	case isFatal(err):
		c.log.Infof("closing %s: %v", c.conn.RemoteAddr(), err)
		c.fireError(err)
		return true, true
	}

	c.log.Debugf("command %q failed: %v", code, err)
	if werr := c.writeLine(c.gateway.ErrorReturn(err).Reply()); werr != nil {
		c.fireError(werr)
		return true, true
	}
	return false, false
}

// SendCommand writes a command to the interpreter over this connection and
// waits for its reply line. Commands the interpreter sends while the reply is
// pending are executed first, with ctx.
func (c *GatewayConnection) SendCommand(ctx context.Context, command string, blocking bool) (string, error) {
	if c.closed.Load() {
		return "", &NetworkError{Phase: ErrorOnSend, Cause: net.ErrClosed}
	}
	c.markUsed()
	if err := c.writeLine(command); err != nil {
		return "", err
	}

	timeout := c.readTimeout
	if !blocking {
		timeout = nonBlockingTimeout(c.readTimeout)
	}
	for {
		c.setReadDeadline(timeout)
		line, err := protocol.ReadLine(c.reader)
		if err != nil {
			return "", &NetworkError{Phase: ErrorOnReceive, Cause: err}
		}
		if strings.HasPrefix(line, string(protocol.ReturnMessage)) {
			return line, nil
		}
		if line == protocol.Quit {
			return "", &NetworkError{Phase: ErrorOnReceive, Cause: io.EOF}
		}
		if done, _ := c.execute(ctx, line); done {
			return "", &NetworkError{Phase: ErrorOnReceive, Cause: errors.New("connection ended while waiting for a reply")}
		}
	}
}

// sendTurn lets host code running a command send on the connection that
// carries the command, e.g. a call into the interpreter made from a handler.
// One sender holds a turn at a time, and the turn expires before the
// command's own reply is written.
type sendTurn struct {
	conn    *GatewayConnection
	mu      sync.Mutex
	expired bool

	// done is closed once the command has been answered.
	done chan struct{}
}

type sendTurnKey struct{}

func turnFrom(ctx context.Context) *sendTurn {
	t, _ := ctx.Value(sendTurnKey{}).(*sendTurn)
	return t
}

// afterCommand runs fn on its own goroutine once the command executing with
// ctx has been answered, or right away when ctx carries no command.
func afterCommand(ctx context.Context, fn func()) {
	t := turnFrom(ctx)
	go func() {
		if t != nil {
			<-t.done
		}
		fn()
	}()
}

// take claims the turn without waiting.
func (t *sendTurn) take() bool {
	if !t.mu.TryLock() {
		return false
	}
	if t.expired || t.conn.IsClosed() {
		t.mu.Unlock()
		return false
	}
	return true
}

func (t *sendTurn) give() { t.mu.Unlock() }

// expire waits for a sender holding the turn and ends it.
func (t *sendTurn) expire() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.expired = true
	t.mu.Unlock()
}

// Close closes the socket. A running loop notices and tears down.
func (c *GatewayConnection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// Shutdown tears the connection down from the goroutine that owns it. With
// reset the socket is closed with linger 0 so the peer sees a reset.
func (c *GatewayConnection) Shutdown(reset bool) {
	c.teardown(reset)
}

// teardown closes the socket, then releases the buffers, then tells the
// listeners.
func (c *GatewayConnection) teardown(reset bool) {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if reset {
			resetConn(c.conn)
		}
		c.conn.Close()
		c.reader.Reset(eofReader{})
		c.writer.Reset(io.Discard)
		for _, l := range c.listeners {
			l.ConnectionStopped(c)
		}
		if c.server != nil {
			c.server.removeConnection(c)
		}
	})
}

func (c *GatewayConnection) writeLine(s string) error {
	if _, err := c.writer.WriteString(s); err != nil {
		return &NetworkError{Phase: ErrorOnSend, Cause: err}
	}
	if err := c.writer.Flush(); err != nil {
		return &NetworkError{Phase: ErrorOnSend, Cause: err}
	}
	return nil
}

func (c *GatewayConnection) setReadDeadline(d time.Duration) {
	var t time.Time
	if d > 0 {
		t = time.Now().Add(d)
	}
	c.conn.SetReadDeadline(t)
}

func (c *GatewayConnection) fireError(err error) {
	for _, l := range c.listeners {
		l.ConnectionError(c, err)
	}
}

func (c *GatewayConnection) markUsed() {
	c.mu.Lock()
	c.used = true
	c.mu.Unlock()
}

// takeUsed reports whether the connection carried a command since the last
// call and clears the flag.
func (c *GatewayConnection) takeUsed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := c.used
	c.used = false
	return u
}

func nonBlockingTimeout(readTimeout time.Duration) time.Duration {
	if readTimeout > 0 {
		return readTimeout
	}
	return DefaultNonBlockingTimeout
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func resetConn(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetLinger(0)
	}
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
