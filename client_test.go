package py4go

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/richinsley/py4go/protocol"
)

// fakePython is a callback server standing in for the interpreter. handle
// answers each command; it may talk to the peer before answering.
type fakePython struct {
	ln       net.Listener
	token    string
	accepted atomic.Int32
	handle   func(cmd []string, r *bufio.Reader, w *bufio.Writer) string

	mu    sync.Mutex
	conns []net.Conn
	wg    sync.WaitGroup
}

func startFakePython(t *testing.T, handle func(cmd []string, r *bufio.Reader, w *bufio.Writer) string) *fakePython {
	t.Helper()
	return startFakePythonWithToken(t, "", handle)
}

func startFakePythonWithToken(t *testing.T, token string, handle func(cmd []string, r *bufio.Reader, w *bufio.Writer) string) *fakePython {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	f := &fakePython{ln: ln, token: token, handle: handle}
	f.wg.Add(1)
	go f.acceptLoop()
	t.Cleanup(f.close)
	return f
}

func (f *fakePython) port() int { return f.ln.Addr().(*net.TCPAddr).Port }

func (f *fakePython) config() ClientConfig {
	return ClientConfig{Address: "127.0.0.1", Port: f.port(), AuthToken: f.token, ReadTimeout: 5 * time.Second}
}

func (f *fakePython) acceptLoop() {
	defer f.wg.Done()
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.accepted.Add(1)
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
		f.wg.Add(1)
		go f.serve(conn)
	}
}

func (f *fakePython) serve(conn net.Conn) {
	defer f.wg.Done()
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		cmd, err := readFrame(r)
		if err != nil {
			return
		}
		var reply string
		if cmd[0] == protocol.AuthCommand {
			if len(cmd) > 1 && cmd[1] == f.token {
				reply = "!yv"
			} else {
				reply = "!xsAuthentication error: bad auth token received."
			}
		} else {
			reply = f.handle(cmd, r, w)
		}
		if reply == "" {
			return
		}
		w.WriteString(reply + "\n")
		w.Flush()
	}
}

func (f *fakePython) close() {
	f.ln.Close()
	f.mu.Lock()
	for _, c := range f.conns {
		c.Close()
	}
	f.mu.Unlock()
	f.wg.Wait()
}

// readFrame reads the lines of one command up to its end marker.
func readFrame(r *bufio.Reader) ([]string, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSuffix(line, "\n")
		if line == protocol.End {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

func echoMethod(cmd []string, _ *bufio.Reader, _ *bufio.Writer) string {
	return "!ys" + cmd[len(cmd)-1]
}

func TestCallbackClientPooling(t *testing.T) {
	py := startFakePython(t, echoMethod)
	client := NewCallbackClient(py.config())
	defer client.Shutdown()

	for i := 0; i < 3; i++ {
		reply, err := client.SendCommand(context.Background(), "c\np0\nrun\ne\n", true)
		if err != nil {
			t.Fatalf("SendCommand failed: %v", err)
		}
		if reply != "!ysrun" {
			t.Errorf("Expected !ysrun, got %q", reply)
		}
	}
	if n := py.accepted.Load(); n != 1 {
		t.Errorf("Expected 1 connection for sequential sends, got %d", n)
	}
	if n := client.IdleConnections(); n != 1 {
		t.Errorf("Expected 1 idle connection, got %d", n)
	}
}

func TestCallbackClientConcurrent(t *testing.T) {
	release := make(chan struct{})
	py := startFakePython(t, func(cmd []string, _ *bufio.Reader, _ *bufio.Writer) string {
		<-release
		return "!ys" + cmd[1]
	})
	client := NewCallbackClient(py.config())
	defer client.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.SendCommand(context.Background(), "c\np0\nrun\ne\n", true); err != nil {
				t.Errorf("SendCommand failed: %v", err)
			}
		}()
	}
	deadline := time.Now().Add(5 * time.Second)
	for py.accepted.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	close(release)
	wg.Wait()

	if n := py.accepted.Load(); n != 4 {
		t.Errorf("Expected 4 connections for concurrent sends, got %d", n)
	}
	if n := client.IdleConnections(); n != 4 {
		t.Errorf("Expected 4 idle connections, got %d", n)
	}
}

func TestCallbackClientCleanup(t *testing.T) {
	py := startFakePython(t, echoMethod)
	client := NewCallbackClient(py.config())
	defer client.Shutdown()

	if _, err := client.SendCommand(context.Background(), "c\np0\nrun\ne\n", true); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	client.periodicCleanup()
	if n := client.IdleConnections(); n != 1 {
		t.Errorf("Expected the used connection to survive a sweep, got %d", n)
	}
	client.periodicCleanup()
	if n := client.IdleConnections(); n != 0 {
		t.Errorf("Expected the idle connection to be closed, got %d", n)
	}
}

func TestCallbackClientAuthentication(t *testing.T) {
	py := startFakePythonWithToken(t, "secret", echoMethod)

	client := NewCallbackClient(py.config())
	defer client.Shutdown()
	if _, err := client.SendCommand(context.Background(), "c\np0\nrun\ne\n", true); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}

	cfg := py.config()
	cfg.AuthToken = "wrong"
	bad := NewCallbackClient(cfg)
	defer bad.Shutdown()
	_, err := bad.SendCommand(context.Background(), "c\np0\nrun\ne\n", true)
	var ae *AuthenticationError
	if !errors.As(err, &ae) {
		t.Errorf("Expected AuthenticationError, got %v", err)
	}
}

func TestCallbackClientReceiveError(t *testing.T) {
	py := startFakePython(t, func([]string, *bufio.Reader, *bufio.Writer) string { return "" })
	client := NewCallbackClient(py.config())
	defer client.Shutdown()

	_, err := client.SendCommand(context.Background(), "c\np0\nrun\ne\n", true)
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
	if ne.Phase != ErrorOnReceive {
		t.Errorf("Expected receive phase, got %s", ne.Phase)
	}
	if ne.Key == "" {
		t.Error("Expected the command key on the error")
	}
	if n := py.accepted.Load(); n != 1 {
		t.Errorf("Expected no retry after a receive error, got %d connections", n)
	}
	if n := client.IdleConnections(); n != 0 {
		t.Errorf("Expected the failed connection to be dropped, got %d", n)
	}
}

func TestCallbackClientShutdown(t *testing.T) {
	py := startFakePython(t, echoMethod)
	client := NewCallbackClient(py.config())
	client.Shutdown()
	client.Shutdown()
	if _, err := client.SendCommand(context.Background(), "c\np0\nrun\ne\n", true); err == nil {
		t.Error("Expected SendCommand to fail after shutdown")
	}
}

func TestRetryable(t *testing.T) {
	send := &NetworkError{Phase: ErrorOnSend, Cause: net.ErrClosed}
	recv := &NetworkError{Phase: ErrorOnReceive, Cause: net.ErrClosed}
	if !retryable(send, true) {
		t.Error("Expected a send failure on a dialed connection to be retryable")
	}
	if retryable(send, false) {
		t.Error("Expected a send failure on an inbound connection not to be retryable")
	}
	if retryable(recv, true) {
		t.Error("Expected a receive failure not to be retryable")
	}
	if retryable(errors.New("other"), true) {
		t.Error("Expected a plain error not to be retryable")
	}

	err := withKey(send, "k1")
	if ne := err.(*NetworkError); ne.Key != "k1" {
		t.Errorf("Expected key k1, got %q", ne.Key)
	}
	if !strings.Contains(err.Error(), "k1") {
		t.Errorf("Expected the key in %q", err.Error())
	}
}

func TestPythonClientReusesSession(t *testing.T) {
	py := startFakePython(t, echoMethod)
	g := newTestGateway(t)
	client := NewPythonClient(py.config(), g, ConnectionConfig{})
	defer client.Shutdown()

	s := NewSession()
	ctx := WithSession(context.Background(), s)
	for i := 0; i < 3; i++ {
		reply, err := client.SendCommand(ctx, "c\np0\nrun\ne\n", true)
		if err != nil {
			t.Fatalf("SendCommand failed: %v", err)
		}
		if reply != "!ysrun" {
			t.Errorf("Expected !ysrun, got %q", reply)
		}
	}
	if n := py.accepted.Load(); n != 1 {
		t.Errorf("Expected 1 connection, got %d", n)
	}
	c := s.Connection()
	if c == nil || !c.InitiatedFromClient() {
		t.Fatalf("Expected the session to be pinned to a dialed connection, got %v", c)
	}
	if n := client.IdleConnections(); n != 1 {
		t.Errorf("Expected 1 idle connection, got %d", n)
	}
}

// TestPythonClientNestedCommand tests that the interpreter can call back into
// the gateway on the connection a command went out on before replying.
func TestPythonClientNestedCommand(t *testing.T) {
	py := startFakePython(t, func(cmd []string, r *bufio.Reader, w *bufio.Writer) string {
		w.WriteString("c\nt\nadd\ni1\ni2\ne\n")
		w.Flush()
		nested, err := r.ReadString('\n')
		if err != nil {
			return ""
		}
		return "!ys" + protocol.Escape(strings.TrimSuffix(nested, "\n"))
	})
	g := newTestGateway(t)
	client := NewPythonClient(py.config(), g, ConnectionConfig{})
	defer client.Shutdown()

	reply, err := client.SendCommand(context.Background(), "c\np0\nrun\ne\n", true)
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if reply != "!ys!yi3" {
		t.Errorf("Expected the nested reply to be echoed, got %q", reply)
	}
}

func TestPythonClientShutdown(t *testing.T) {
	py := startFakePython(t, echoMethod)
	g := newTestGateway(t)
	client := NewPythonClient(py.config(), g, ConnectionConfig{})
	if _, err := client.SendCommand(context.Background(), "c\np0\nrun\ne\n", true); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	client.Shutdown()
	if n := client.IdleConnections(); n != 0 {
		t.Errorf("Expected no idle connections, got %d", n)
	}
	if _, err := client.SendCommand(context.Background(), "c\np0\nrun\ne\n", true); err == nil {
		t.Error("Expected SendCommand to fail after shutdown")
	}
}

type fanOutEntryPoint struct{}

// FanOut greets through p from two goroutines sharing the command's context.
func (fanOutEntryPoint) FanOut(ctx context.Context, p *Proxy) (string, error) {
	results := make([]string, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = CallProxy[string](ctx, p, "greet", "g"+strconv.Itoa(i))
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return "", err
		}
	}
	sort.Strings(results)
	return strings.Join(results, ","), nil
}

// TestPythonClientSharedContext tests goroutines that share a command's
// context: one of them may use the connection carrying the command, the
// other must get a connection of its own.
func TestPythonClientSharedContext(t *testing.T) {
	py := startFakePython(t, echoMethod)
	g := NewGateway(fanOutEntryPoint{}, WithMemoryManagement(false))
	g.Startup()
	t.Cleanup(func() { g.Shutdown(false) })
	client := NewPythonClient(py.config(), g, ConnectionConfig{})
	defer client.Shutdown()
	g.SetClient(client)

	peer := startConnection(t, g, ConnectionConfig{})
	peer.send(t, "c\nt\nfanOut\nfp0;com.example.Greeter\ne\n")

	var frame []string
	for {
		line := peer.readLine(t)
		if line == "e\n" {
			break
		}
		frame = append(frame, strings.TrimSuffix(line, "\n"))
	}
	if len(frame) != 4 || frame[0] != "c" || frame[1] != "p0" || frame[2] != "greet" {
		t.Fatalf("Expected a greet command, got %q", frame)
	}
	// hold the reply so the other goroutine runs while this one waits
	time.Sleep(200 * time.Millisecond)
	peer.send(t, "!ys"+frame[3]+"\n")

	if got := peer.readLine(t); got != "!yssg0,sg1\n" {
		t.Errorf("Expected both greetings, got %q", got)
	}
	if n := py.accepted.Load(); n != 1 {
		t.Errorf("Expected the second goroutine to dial 1 connection, got %d", n)
	}
}
