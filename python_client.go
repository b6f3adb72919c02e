package py4go

import (
	"container/list"
	"context"
	"net"
	"sync"
	"weak"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

// Session is the logical thread of a call chain. A connection worker carries
// its own session in the context it passes to host code. A call into the
// interpreter made while a command executes goes out on the connection that
// carries the command, so a chain of nested calls between the two processes
// stays on one socket; other goroutines sharing the context get a connection
// of their own. Calls made outside any command reuse the dialed connection
// the session was last pinned to when it is free.
//
// The pin is a weak pointer: a session never keeps a closed or forgotten
// connection alive.
type Session struct {
	mu   sync.Mutex
	conn weak.Pointer[GatewayConnection]
}

type sessionKey struct{}

// NewSession returns an unpinned session.
func NewSession() *Session {
	return &Session{}
}

// WithSession returns ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session carried by ctx, or nil.
func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// Connection returns the pinned connection if it is still alive.
func (s *Session) Connection() *GatewayConnection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conn.Value()
	if c == nil || c.IsClosed() {
		return nil
	}
	return c
}

func (s *Session) pin(c *GatewayConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = weak.Make(c)
}

// pinDialed pins s to the dialed connection c unless s belongs to a live
// inbound connection.
func (s *Session) pinDialed(c *GatewayConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.conn.Value(); cur != nil && !cur.initiatedFromClient && !cur.IsClosed() {
		return
	}
	s.conn = weak.Make(c)
}

// PythonClient is the client of pinned mode. It reuses the connection
// pinned to the caller's session and otherwise takes an idle connection it
// dialed earlier, or dials a new one. Dialed connections speak the full
// protocol in both directions, like inbound ones.
type PythonClient struct {
	cfg     ClientConfig
	gateway *Gateway
	conn    ConnectionConfig

	mu         sync.Mutex
	idle       *list.List
	isShutdown bool
	log        commonlog.Logger
}

// NewPythonClient returns a client dialing cfg's address. Dialed connections
// execute the interpreter's nested commands with the gateway and connection
// settings given.
func NewPythonClient(cfg ClientConfig, gateway *Gateway, conn ConnectionConfig) *PythonClient {
	conn.InitiatedFromClient = true
	conn.Server = nil
	return &PythonClient{
		cfg:     cfg,
		gateway: gateway,
		conn:    conn,
		idle:    list.New(),
		log:     commonlog.GetLogger("py4go.python"),
	}
}

// SendCommand sends command on the caller's connection. Callers without a
// session get a fresh one for the duration of the call.
func (p *PythonClient) SendCommand(ctx context.Context, command string, blocking bool) (string, error) {
	s := SessionFrom(ctx)
	if s == nil {
		s = NewSession()
		ctx = WithSession(ctx, s)
	}
	key := newCommandKey()

	reply, clientInitiated, err := p.send(ctx, s, command, blocking)
	if err != nil && retryable(err, clientInitiated) {
		p.log.Infof("retrying command %s after: %v", key, err)
		reply, _, err = p.send(ctx, s, command, blocking)
	}
	if err != nil {
		return "", withKey(err, key)
	}
	return reply, nil
}

func (p *PythonClient) send(ctx context.Context, s *Session, command string, blocking bool) (string, bool, error) {
	if turn := turnFrom(ctx); turn != nil && turn.take() {
		defer turn.give()
		reply, err := turn.conn.SendCommand(ctx, command, blocking)
		if err != nil {
			p.log.Debugf("nested send on %s failed: %v", turn.conn.RemoteAddr(), err)
			turn.conn.Close()
			return "", false, err
		}
		return reply, turn.conn.initiatedFromClient, nil
	}

	c, err := p.acquire(ctx, s)
	if err != nil {
		return "", false, err
	}
	reply, err := c.SendCommand(ctx, command, blocking)
	if err != nil {
		p.log.Debugf("send on %s failed: %v", c.RemoteAddr(), err)
		c.Close()
		return "", c.initiatedFromClient, err
	}
	p.release(s, c)
	return reply, c.initiatedFromClient, nil
}

// acquire returns a dialed connection for the exclusive use of the caller:
// the one s is pinned to when it is idle, else any idle one, else a new one.
// Callers holding a send turn of a command in progress use its connection
// instead, see send.
func (p *PythonClient) acquire(ctx context.Context, s *Session) (*GatewayConnection, error) {
	if c := s.Connection(); c != nil && c.initiatedFromClient && p.takeIdle(c) {
		return c, nil
	}
	if c := p.popIdle(); c != nil {
		return c, nil
	}
	return p.dial(ctx)
}

func (p *PythonClient) release(s *Session, c *GatewayConnection) {
	s.pinDialed(c)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isShutdown {
		c.Shutdown(false)
		return
	}
	p.idle.PushBack(c)
}

func (p *PythonClient) takeIdle(c *GatewayConnection) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for e := p.idle.Front(); e != nil; e = e.Next() {
		if e.Value.(*GatewayConnection) == c {
			p.idle.Remove(e)
			return true
		}
	}
	return false
}

func (p *PythonClient) popIdle() *GatewayConnection {
	p.mu.Lock()
	defer p.mu.Unlock()
	for back := p.idle.Back(); back != nil; back = p.idle.Back() {
		p.idle.Remove(back)
		c := back.Value.(*GatewayConnection)
		if !c.IsClosed() {
			return c
		}
	}
	return nil
}

func (p *PythonClient) dial(ctx context.Context) (*GatewayConnection, error) {
	p.mu.Lock()
	shut := p.isShutdown
	p.mu.Unlock()
	if shut {
		return nil, &NetworkError{Phase: OtherPhase, Cause: errors.New("client is shut down")}
	}

	d := net.Dialer{Timeout: p.cfg.ConnectTimeout}
	conn, err := d.DialContext(ctx, "tcp", p.cfg.addr())
	if err != nil {
		return nil, &NetworkError{Phase: OtherPhase, Cause: errors.Wrapf(err, "cannot connect to %s", p.cfg.addr())}
	}
	c := NewGatewayConnection(conn, p.gateway, p.conn)
	if p.cfg.AuthToken != "" {
		if err := authenticate(conn, c.reader, c.writer, p.cfg.AuthToken, p.cfg.ReadTimeout); err != nil {
			c.Shutdown(true)
			return nil, err
		}
	}
	p.log.Debugf("connected to %s", p.cfg.addr())
	return c, nil
}

// IdleConnections returns the number of dialed connections not in use.
func (p *PythonClient) IdleConnections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle.Len()
}

// Shutdown closes the idle dialed connections. Connections in use are closed
// when they are given back.
func (p *PythonClient) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isShutdown {
		return
	}
	p.isShutdown = true
	for e := p.idle.Front(); e != nil; e = e.Next() {
		e.Value.(*GatewayConnection).Shutdown(false)
	}
	p.idle.Init()
}
