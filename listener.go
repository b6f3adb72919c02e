package py4go

// ConnectionListener is told about the life of each connection.
type ConnectionListener interface {
	ConnectionStarted(c *GatewayConnection)
	ConnectionStopped(c *GatewayConnection)
	ConnectionError(c *GatewayConnection, err error)
}

// GatewayServerListener is told about the life of a server and of every
// connection it accepts.
type GatewayServerListener interface {
	ConnectionListener

	ServerStarted(s *GatewayServer)
	ServerStopped(s *GatewayServer)
	ServerError(s *GatewayServer, err error)
	ServerPreShutdown(s *GatewayServer)
	ServerPostShutdown(s *GatewayServer)
}

// DefaultServerListener ignores every event. Embed it to implement only the
// events of interest.
type DefaultServerListener struct{}

func (DefaultServerListener) ConnectionStarted(*GatewayConnection) {}
func (DefaultServerListener) ConnectionStopped(*GatewayConnection) {}
func (DefaultServerListener) ConnectionError(*GatewayConnection, error) {}
func (DefaultServerListener) ServerStarted(*GatewayServer) {}
func (DefaultServerListener) ServerStopped(*GatewayServer) {}
func (DefaultServerListener) ServerError(*GatewayServer, error) {}
func (DefaultServerListener) ServerPreShutdown(*GatewayServer) {}
func (DefaultServerListener) ServerPostShutdown(*GatewayServer) {}

// serverEvents forwards connection events to the listeners registered on the
// server at the time of the event.
type serverEvents struct {
	server *GatewayServer
}

func (e serverEvents) ConnectionStarted(c *GatewayConnection) {
	for _, l := range e.server.snapshotListeners() {
		l.ConnectionStarted(c)
	}
}

func (e serverEvents) ConnectionStopped(c *GatewayConnection) {
	for _, l := range e.server.snapshotListeners() {
		l.ConnectionStopped(c)
	}
}

func (e serverEvents) ConnectionError(c *GatewayConnection, err error) {
	for _, l := range e.server.snapshotListeners() {
		l.ConnectionError(c, err)
	}
}
