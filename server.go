package py4go

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/richinsley/py4go/protocol"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"
)

// GatewayServer accepts connections from the interpreter and serves each one
// on its own goroutine. All connections share one Gateway.
type GatewayServer struct {
	cfg      Config
	gateway  *Gateway
	commands *CommandRegistry

	listenersMu sync.RWMutex
	listeners   []GatewayServerListener

	mu          sync.Mutex
	listener    net.Listener
	python      ClientConfig
	connections map[*GatewayConnection]struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopped     chan struct{}
	stopOnce    sync.Once

	log commonlog.Logger
}

// ServerOption configures a GatewayServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	config      Config
	commands    map[string]CommandHandler
	listeners   []GatewayServerListener
	gatewayOpts []GatewayOption
	client      Client
}

// WithConfig replaces the default settings.
func WithConfig(cfg Config) ServerOption {
	return func(c *serverConfig) { c.config = cfg }
}

// WithCommand adds or replaces a command handler.
func WithCommand(code string, handler CommandHandler) ServerOption {
	return func(c *serverConfig) { c.commands[code] = handler }
}

// WithListener registers a lifecycle listener.
func WithListener(l GatewayServerListener) ServerOption {
	return func(c *serverConfig) { c.listeners = append(c.listeners, l) }
}

// WithGatewayOptions passes options to the server's Gateway.
func WithGatewayOptions(opts ...GatewayOption) ServerOption {
	return func(c *serverConfig) { c.gatewayOpts = append(c.gatewayOpts, opts...) }
}

// WithCallbackClient replaces the client the server would create from its
// settings.
func WithCallbackClient(client Client) ServerOption {
	return func(c *serverConfig) { c.client = client }
}

// NewGatewayServer returns a server exposing entryPoint. Call Start or Serve
// to begin accepting connections.
func NewGatewayServer(entryPoint interface{}, opts ...ServerOption) *GatewayServer {
	sc := &serverConfig{
		config:   DefaultConfig(),
		commands: make(map[string]CommandHandler),
	}
	for _, opt := range opts {
		opt(sc)
	}

	gopts := []GatewayOption{
		WithMemoryManagement(sc.config.MemoryManagement),
		WithGCQueueSize(sc.config.GCQueueSize),
	}
	gopts = append(gopts, sc.gatewayOpts...)

	commands := BaseCommands()
	for code, h := range sc.commands {
		commands.Register(code, h)
	}

	s := &GatewayServer{
		cfg:         sc.config,
		gateway:     NewGateway(entryPoint, gopts...),
		commands:    commands,
		listeners:   sc.listeners,
		connections: make(map[*GatewayConnection]struct{}),
		python:      sc.config.clientConfig(),
		stopped:     make(chan struct{}),
		log:         commonlog.GetLogger("py4go.server"),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	client := sc.client
	if client == nil {
		client = s.newClient(s.cfg.clientConfig())
	}
	s.gateway.SetClient(client)
	s.gateway.PutObject(protocol.GatewayServerID, &serverControl{server: s})
	return s
}

func (s *GatewayServer) newClient(cc ClientConfig) Client {
	if s.cfg.PinnedThread {
		return NewPythonClient(cc, s.gateway, s.connectionConfig(false))
	}
	return NewCallbackClient(cc)
}

func (s *GatewayServer) connectionConfig(inbound bool) ConnectionConfig {
	cfg := ConnectionConfig{
		Commands:    s.commands,
		AuthToken:   s.cfg.AuthToken,
		ReadTimeout: s.cfg.ReadTimeout,
		CacheSize:   s.cfg.CacheSize,
		Listeners:   []ConnectionListener{serverEvents{server: s}},
	}
	if inbound {
		cfg.Server = s
	}
	return cfg
}

// Gateway returns the shared registry.
func (s *GatewayServer) Gateway() *Gateway { return s.gateway }

// Client returns the client used for calls into the interpreter.
func (s *GatewayServer) Client() Client { return s.gateway.Client() }

// Config returns the server settings.
func (s *GatewayServer) Config() Config { return s.cfg }

// Addr returns the bound address, or nil before Start.
func (s *GatewayServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound port, or the configured one before Start.
func (s *GatewayServer) Port() int {
	if tcp, ok := s.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return s.cfg.Port
}

// AddListener registers l.
func (s *GatewayServer) AddListener(l GatewayServerListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// RemoveListener unregisters l.
func (s *GatewayServer) RemoveListener(l GatewayServerListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for i, x := range s.listeners {
		if x == l {
			s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *GatewayServer) snapshotListeners() []GatewayServerListener {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	return append([]GatewayServerListener(nil), s.listeners...)
}

// Start binds the listening socket and accepts connections in the
// background.
func (s *GatewayServer) Start(ctx context.Context) error {
	lc := net.ListenConfig{Control: reuseAddr}
	addr := net.JoinHostPort(s.cfg.Address, strconv.Itoa(s.cfg.Port))
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		err = errors.Wrapf(err, "cannot listen on %s", addr)
		for _, l := range s.snapshotListeners() {
			l.ServerError(s, err)
		}
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.gateway.Startup()

	s.log.Infof("gateway listening on %s", ln.Addr())
	for _, l := range s.snapshotListeners() {
		l.ServerStarted(s)
	}

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Serve starts the server and blocks until it shuts down or ctx is
// cancelled.
func (s *GatewayServer) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return s.Shutdown()
	case <-s.stopped:
		return nil
	}
}

// Done is closed once the server has shut down.
func (s *GatewayServer) Done() <-chan struct{} { return s.stopped }

func (s *GatewayServer) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Errorf("accept failed: %v", err)
			for _, l := range s.snapshotListeners() {
				l.ServerError(s, err)
			}
			return
		}

		c := NewGatewayConnection(conn, s.gateway, s.connectionConfig(true))
		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			c.Shutdown(false)
			return
		}
		s.connections[c] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		s.log.Debugf("accepted %s", conn.RemoteAddr())
		go func() {
			defer s.wg.Done()
			c.Run(s.ctx)
		}()
	}
}

func (s *GatewayServer) removeConnection(c *GatewayConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, c)
}

// Connections returns the number of live inbound connections.
func (s *GatewayServer) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// ResetCallbackClient points calls into the interpreter at a new address.
// The previous client is shut down.
func (s *GatewayServer) ResetCallbackClient(address string, port int) {
	cc := s.cfg.clientConfig()
	cc.Address = address
	cc.Port = port
	s.mu.Lock()
	s.python = cc
	s.mu.Unlock()
	if old := s.gateway.SetClient(s.newClient(cc)); old != nil {
		old.Shutdown()
	}
	s.log.Infof("callback client reset to %s", cc.addr())
}

func (s *GatewayServer) pythonConfig() ClientConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.python
}

// Shutdown stops accepting, closes every connection, shuts the callback
// client down and releases the registry. It waits for every connection
// worker, so command handlers must not call it. It is safe to call more than
// once.
func (s *GatewayServer) Shutdown() error {
	var err error
	s.stopOnce.Do(func() {
		listeners := s.snapshotListeners()
		for _, l := range listeners {
			l.ServerPreShutdown(s)
		}

		s.mu.Lock()
		s.cancel()
		ln := s.listener
		conns := make([]*GatewayConnection, 0, len(s.connections))
		for c := range s.connections {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		var eg errgroup.Group
		if ln != nil {
			eg.Go(func() error {
				if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
					return errors.Wrap(err, "cannot close listener")
				}
				return nil
			})
		}
		for _, c := range conns {
			eg.Go(func() error {
				if err := c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
					return errors.Wrapf(err, "cannot close %s", c.RemoteAddr())
				}
				return nil
			})
		}
		err = eg.Wait()
		if err != nil {
			s.log.Warningf("shutdown: %v", err)
		}
		s.wg.Wait()

		s.gateway.Shutdown(true)
		s.log.Infof("gateway stopped")
		for _, l := range listeners {
			l.ServerStopped(s)
		}
		close(s.stopped)
		for _, l := range listeners {
			l.ServerPostShutdown(s)
		}
	})
	return err
}

// serverControl is the object the interpreter reaches at GATEWAY_SERVER.
// Its methods run on connection workers.
type serverControl struct {
	server *GatewayServer
}

func (c *serverControl) Port() int { return c.server.Port() }

func (c *serverControl) Address() string { return c.server.cfg.Address }

func (c *serverControl) PythonPort() int { return c.server.pythonConfig().Port }

func (c *serverControl) PythonAddress() string { return c.server.pythonConfig().Address }

func (c *serverControl) Connections() int { return c.server.Connections() }

func (c *serverControl) ResetCallbackClient(address string, port int) {
	c.server.ResetCallbackClient(address, port)
}

// Shutdown stops the server once the calling command has been answered; the
// caller's connection is closed with the others.
func (c *serverControl) Shutdown(ctx context.Context) {
	afterCommand(ctx, func() { c.server.Shutdown() })
}
