package py4go

import (
	"bufio"
	"container/list"
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/richinsley/py4go/protocol"
	"github.com/tliron/commonlog"
)

// DefaultMinConnectionTime is how often idle callback connections are swept.
const DefaultMinConnectionTime = 30 * time.Second

// CallbackConnection is a dialed connection to the interpreter's callback
// server. It carries one command at a time.
type CallbackConnection struct {
	cfg    ClientConfig
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	used   bool
	log    commonlog.Logger
}

func newCallbackConnection(cfg ClientConfig) *CallbackConnection {
	return &CallbackConnection{cfg: cfg, log: commonlog.GetLogger("py4go.callback")}
}

// Start dials the interpreter and authenticates.
func (c *CallbackConnection) Start(ctx context.Context) error {
	d := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.cfg.addr())
	if err != nil {
		return &NetworkError{Phase: OtherPhase, Cause: errors.Wrapf(err, "cannot connect to %s", c.cfg.addr())}
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.writer = bufio.NewWriter(conn)
	if c.cfg.AuthToken != "" {
		if err := authenticate(c.conn, c.reader, c.writer, c.cfg.AuthToken, c.cfg.ReadTimeout); err != nil {
			c.Shutdown(true)
			return err
		}
	}
	return nil
}

// SendCommand writes command and reads one reply line.
func (c *CallbackConnection) SendCommand(ctx context.Context, command string, blocking bool) (string, error) {
	c.used = true
	if _, err := c.writer.WriteString(command); err != nil {
		return "", &NetworkError{Phase: ErrorOnSend, Cause: err}
	}
	if err := c.writer.Flush(); err != nil {
		return "", &NetworkError{Phase: ErrorOnSend, Cause: err}
	}

	timeout := c.cfg.ReadTimeout
	if !blocking {
		timeout = nonBlockingTimeout(c.cfg.ReadTimeout)
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	c.conn.SetReadDeadline(deadline)
	line, err := protocol.ReadLine(c.reader)
	if err != nil {
		if isTimeout(err) {
			c.Shutdown(true)
		}
		return "", &NetworkError{Phase: ErrorOnReceive, Cause: err}
	}
	return line, nil
}

// Shutdown closes the socket; with reset it is closed with linger 0.
func (c *CallbackConnection) Shutdown(reset bool) {
	if c.conn == nil {
		return
	}
	if reset {
		resetConn(c.conn)
	}
	c.conn.Close()
}

// authenticate sends the auth command on a freshly dialed socket.
func authenticate(conn net.Conn, r *bufio.Reader, w *bufio.Writer, token string, timeout time.Duration) error {
	if _, err := w.WriteString(protocol.BuildCommand(protocol.AuthCommand, protocol.Escape(token))); err != nil {
		return &NetworkError{Phase: ErrorOnSend, Cause: err}
	}
	if err := w.Flush(); err != nil {
		return &NetworkError{Phase: ErrorOnSend, Cause: err}
	}
	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}
	line, err := protocol.ReadLine(r)
	if err != nil {
		return &NetworkError{Phase: ErrorOnReceive, Cause: err}
	}
	reply, err := protocol.ParseReply(line)
	if err != nil {
		return err
	}
	if reply.IsError() {
		return &AuthenticationError{Msg: protocol.Unescape(strings.TrimPrefix(reply.Payload, string(protocol.StringType)))}
	}
	return nil
}

// CallbackClient keeps a pool of callback connections. A send takes the most
// recently returned connection or dials a new one, and gives it back when the
// reply arrives. Connections idle for a whole sweep period are closed.
type CallbackClient struct {
	cfg ClientConfig

	mu          sync.Mutex
	connections *list.List
	isShutdown  bool

	stopCleanup chan struct{}
	cleanupDone sync.WaitGroup
	log         commonlog.Logger
}

// NewCallbackClient returns a pooled client and starts its idle sweeper.
func NewCallbackClient(cfg ClientConfig) *CallbackClient {
	if cfg.MinConnectionTime <= 0 {
		cfg.MinConnectionTime = DefaultMinConnectionTime
	}
	c := &CallbackClient{
		cfg:         cfg,
		connections: list.New(),
		stopCleanup: make(chan struct{}),
		log:         commonlog.GetLogger("py4go.callback"),
	}
	c.cleanupDone.Add(1)
	go c.cleanupLoop()
	return c
}

// Address returns the interpreter address the client dials.
func (c *CallbackClient) Address() string { return c.cfg.addr() }

// SendCommand sends command on a pooled connection. A failure while writing
// is retried once on another connection under the same correlation key.
func (c *CallbackClient) SendCommand(ctx context.Context, command string, blocking bool) (string, error) {
	key := newCommandKey()
	reply, err := c.send(ctx, command, blocking)
	if err != nil && retryable(err, true) {
		c.log.Infof("retrying command %s after: %v", key, err)
		reply, err = c.send(ctx, command, blocking)
	}
	if err != nil {
		return "", withKey(err, key)
	}
	return reply, nil
}

func (c *CallbackClient) send(ctx context.Context, command string, blocking bool) (string, error) {
	cc, err := c.getConnection(ctx)
	if err != nil {
		return "", err
	}
	reply, err := cc.SendCommand(ctx, command, blocking)
	if err != nil {
		cc.Shutdown(true)
		return "", err
	}
	c.giveBack(cc)
	return reply, nil
}

func (c *CallbackClient) getConnection(ctx context.Context) (*CallbackConnection, error) {
	c.mu.Lock()
	if c.isShutdown {
		c.mu.Unlock()
		return nil, &NetworkError{Phase: OtherPhase, Cause: errors.New("callback client is shut down")}
	}
	if back := c.connections.Back(); back != nil {
		c.connections.Remove(back)
		c.mu.Unlock()
		return back.Value.(*CallbackConnection), nil
	}
	c.mu.Unlock()

	cc := newCallbackConnection(c.cfg)
	if err := cc.Start(ctx); err != nil {
		return nil, err
	}
	return cc, nil
}

func (c *CallbackClient) giveBack(cc *CallbackConnection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isShutdown {
		cc.Shutdown(false)
		return
	}
	c.connections.PushBack(cc)
}

func (c *CallbackClient) cleanupLoop() {
	defer c.cleanupDone.Done()
	ticker := time.NewTicker(c.cfg.MinConnectionTime)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCleanup:
			return
		case <-ticker.C:
			c.periodicCleanup()
		}
	}
}

// periodicCleanup keeps connections used since the last sweep and closes the
// rest.
func (c *CallbackClient) periodicCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.connections.Len()
	for i := 0; i < n; i++ {
		back := c.connections.Back()
		c.connections.Remove(back)
		cc := back.Value.(*CallbackConnection)
		if cc.used {
			cc.used = false
			c.connections.PushFront(cc)
		} else {
			cc.Shutdown(false)
		}
	}
}

// IdleConnections returns the number of pooled connections.
func (c *CallbackClient) IdleConnections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connections.Len()
}

// Shutdown closes every pooled connection and stops the sweeper.
func (c *CallbackClient) Shutdown() {
	c.mu.Lock()
	if c.isShutdown {
		c.mu.Unlock()
		return
	}
	c.isShutdown = true
	for e := c.connections.Front(); e != nil; e = e.Next() {
		e.Value.(*CallbackConnection).Shutdown(false)
	}
	c.connections.Init()
	c.mu.Unlock()

	close(c.stopCleanup)
	c.cleanupDone.Wait()
}
