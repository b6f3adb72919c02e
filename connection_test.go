package py4go

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/richinsley/py4go/protocol"
)

type recordingListener struct {
	DefaultServerListener

	mu      sync.Mutex
	started int
	stopped int
	errs    []error
}

func (l *recordingListener) ConnectionStarted(*GatewayConnection) {
	l.mu.Lock()
	l.started++
	l.mu.Unlock()
}

func (l *recordingListener) ConnectionStopped(*GatewayConnection) {
	l.mu.Lock()
	l.stopped++
	l.mu.Unlock()
}

func (l *recordingListener) ConnectionError(_ *GatewayConnection, err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func (l *recordingListener) counts() (int, int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started, l.stopped, len(l.errs)
}

type testPeer struct {
	conn   net.Conn
	reader *bufio.Reader
	done   chan struct{}
}

// startConnection serves one end of a pipe and returns the other end.
func startConnection(t *testing.T, g *Gateway, cfg ConnectionConfig) *testPeer {
	t.Helper()
	server, client := net.Pipe()
	c := NewGatewayConnection(server, g, cfg)
	peer := &testPeer{conn: client, reader: bufio.NewReader(client), done: make(chan struct{})}
	go func() {
		c.Run(context.Background())
		close(peer.done)
	}()
	t.Cleanup(func() {
		client.Close()
		<-peer.done
	})
	return peer
}

func (p *testPeer) send(t *testing.T, command string) {
	t.Helper()
	p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := io.WriteString(p.conn, command); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func (p *testPeer) readLine(t *testing.T) string {
	t.Helper()
	p.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := p.reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	return line
}

func (p *testPeer) call(t *testing.T, command string) string {
	t.Helper()
	p.send(t, command)
	return p.readLine(t)
}

func (p *testPeer) expectClosed(t *testing.T) {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected the connection to close")
	}
}

func TestConnectionCall(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{})

	if got := peer.call(t, "c\nt\nadd\ni1\ni2\ne\n"); got != "!yi3\n" {
		t.Errorf("Expected !yi3, got %q", got)
	}
	if got := peer.call(t, "c\nt\ngreeting\nsworld\ne\n"); got != "!yshello world\n" {
		t.Errorf("Expected greeting, got %q", got)
	}
	if got := peer.call(t, "c\nt\nfail\ne\n"); !strings.HasPrefix(got, "!xro") {
		t.Errorf("Expected error reference, got %q", got)
	}
}

func TestConnectionCollections(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{})

	reply := peer.call(t, "i\njava.util.ArrayList\ne\n")
	if !strings.HasPrefix(reply, "!ylo") {
		t.Fatalf("Expected list reference, got %q", reply)
	}
	id := strings.TrimSuffix(strings.TrimPrefix(reply, "!yl"), "\n")

	if got := peer.call(t, "c\n"+id+"\nadd\nsfoo\ne\n"); got != "!ybtrue\n" {
		t.Errorf("Expected !ybtrue, got %q", got)
	}
	if got := peer.call(t, "c\n"+id+"\nadd\ni0\nsbar\ne\n"); got != protocol.VoidReply {
		t.Errorf("Expected void insert, got %q", got)
	}
	if got := peer.call(t, "c\n"+id+"\nsize\ne\n"); got != "!yi2\n" {
		t.Errorf("Expected !yi2, got %q", got)
	}
	if got := peer.call(t, "l\ns\n"+id+"\ne\n"); got != protocol.VoidReply {
		t.Errorf("Expected void sort, got %q", got)
	}
	if got := peer.call(t, "c\n"+id+"\nget\ni0\ne\n"); got != "!ysbar\n" {
		t.Errorf("Expected bar first after sort, got %q", got)
	}
	if got := peer.call(t, "m\nd\n"+id+"\ne\n"); got != protocol.VoidReply {
		t.Errorf("Expected void delete, got %q", got)
	}
	if _, ok := g.GetObject(id); ok {
		t.Errorf("Expected %s to be released", id)
	}
}

func TestConnectionUnknownCommand(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{})

	if got := peer.call(t, "Z\nfoo\ne\n"); got != "!xsUnknown command: Z\n" {
		t.Errorf("Expected unknown command error, got %q", got)
	}
	// the stream stays in sync
	if got := peer.call(t, "c\nt\nadd\ni2\ni2\ne\n"); got != "!yi4\n" {
		t.Errorf("Expected !yi4, got %q", got)
	}
}

func TestConnectionFieldsAndReflection(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{})

	if got := peer.call(t, "f\ng\nt\nlabel\ne\n"); got != "!ysep\n" {
		t.Errorf("Expected field value, got %q", got)
	}
	if got := peer.call(t, "f\ns\nt\nlabel\nsnew\ne\n"); got != protocol.VoidReply {
		t.Errorf("Expected void set, got %q", got)
	}
	if got := peer.call(t, "f\ng\nt\nmissing\ne\n"); got != protocol.NoSuchFieldReply {
		t.Errorf("Expected !yo, got %q", got)
	}
	if got := peer.call(t, "r\nu\njava.util.ArrayList\nrj\ne\n"); got != "!ycjava.util.ArrayList\n" {
		t.Errorf("Expected class reply, got %q", got)
	}
	if got := peer.call(t, "r\nu\njava.util\nrj\ne\n"); got != "!yp\n" {
		t.Errorf("Expected package reply, got %q", got)
	}
	if got := peer.call(t, "r\nm\njava.lang.Math\nmax\ne\n"); got != "!ym\n" {
		t.Errorf("Expected method reply, got %q", got)
	}
	if got := peer.call(t, "r\nm\njava.lang.Integer\nMAX_VALUE\ne\n"); got != "!yi2147483647\n" {
		t.Errorf("Expected static field value, got %q", got)
	}
}

func TestConnectionViews(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{})

	if got := peer.call(t, "j\ni\nrj\nsjava.util.*\ne\n"); got != protocol.VoidReply {
		t.Errorf("Expected void import, got %q", got)
	}
	if got := peer.call(t, "r\nu\nArrayList\nrj\ne\n"); got != "!ycjava.util.ArrayList\n" {
		t.Errorf("Expected star import to resolve, got %q", got)
	}
	seq := g.DefaultView().SequenceID()
	if got := peer.call(t, "j\ns\nrj\nL"+strconv.FormatInt(seq, 10)+"\ne\n"); got != "!yn\n" {
		t.Errorf("Expected null for an unchanged view, got %q", got)
	}
	if got := peer.call(t, "j\nr\nrj\nsjava.util.*\ne\n"); got != "!ybtrue\n" {
		t.Errorf("Expected removal to succeed, got %q", got)
	}
}

func TestConnectionArrays(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{})

	reply := peer.call(t, "a\nc\nsint\ni3\ne\n")
	if !strings.HasPrefix(reply, "!yto") {
		t.Fatalf("Expected array reference, got %q", reply)
	}
	id := strings.TrimSuffix(strings.TrimPrefix(reply, "!yt"), "\n")
	if got := peer.call(t, "a\ns\n"+id+"\ni1\ni7\ne\n"); got != protocol.VoidReply {
		t.Errorf("Expected void set, got %q", got)
	}
	if got := peer.call(t, "a\ng\n"+id+"\ni1\ne\n"); got != "!yi7\n" {
		t.Errorf("Expected !yi7, got %q", got)
	}
	if got := peer.call(t, "a\ne\n"+id+"\ne\n"); got != "!yi3\n" {
		t.Errorf("Expected length 3, got %q", got)
	}
}

func TestConnectionAuthentication(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{AuthToken: "secret"})

	if got := peer.call(t, "A\nsecret\ne\n"); got != protocol.VoidReply {
		t.Fatalf("Expected void auth reply, got %q", got)
	}
	if got := peer.call(t, "c\nt\nadd\ni1\ni1\ne\n"); got != "!yi2\n" {
		t.Errorf("Expected !yi2, got %q", got)
	}
}

func TestConnectionAuthenticationRequired(t *testing.T) {
	g := newTestGateway(t)
	l := &recordingListener{}
	peer := startConnection(t, g, ConnectionConfig{AuthToken: "secret", Listeners: []ConnectionListener{l}})

	got := peer.call(t, "c\nt\nadd\ni1\ni1\ne\n")
	if !strings.HasPrefix(got, "!xsAuthentication error") {
		t.Errorf("Expected authentication error, got %q", got)
	}
	peer.expectClosed(t)

	started, stopped, errs := l.counts()
	if started != 1 || stopped != 1 || errs != 1 {
		t.Errorf("Expected 1 start, 1 stop and 1 error, got %d, %d, %d", started, stopped, errs)
	}
}

func TestConnectionBadToken(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{AuthToken: "secret"})

	got := peer.call(t, "A\nwrong\ne\n")
	if !strings.HasPrefix(got, "!xsAuthentication error") {
		t.Errorf("Expected authentication error, got %q", got)
	}
	peer.expectClosed(t)
}

func TestConnectionProtocolError(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{})

	got := peer.call(t, "c\nt\nadd\nQbad\ne\n")
	if !strings.HasPrefix(got, "!z") {
		t.Errorf("Expected fatal reply, got %q", got)
	}
	peer.expectClosed(t)
}

func TestConnectionQuit(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{})
	peer.send(t, "q\n")
	peer.expectClosed(t)
}

// TestConnectionNestedCommands tests that commands the peer sends while a
// reply is pending run before the reply is returned.
func TestConnectionNestedCommands(t *testing.T) {
	g := newTestGateway(t)
	server, client := net.Pipe()
	defer client.Close()
	c := NewGatewayConnection(server, g, ConnectionConfig{})
	defer c.Close()
	peer := &testPeer{conn: client, reader: bufio.NewReader(client)}

	type result struct {
		reply string
		err   error
	}
	results := make(chan result, 1)
	go func() {
		reply, err := c.SendCommand(context.Background(), "c\np0\nrun\ne\n", true)
		results <- result{reply, err}
	}()

	for _, want := range []string{"c\n", "p0\n", "run\n", "e\n"} {
		if got := peer.readLine(t); got != want {
			t.Fatalf("Expected %q, got %q", want, got)
		}
	}
	if got := peer.call(t, "c\nt\nadd\ni20\ni22\ne\n"); got != "!yi42\n" {
		t.Errorf("Expected nested reply !yi42, got %q", got)
	}
	peer.send(t, "!ysdone\n")

	select {
	case r := <-results:
		if r.err != nil {
			t.Fatalf("SendCommand failed: %v", r.err)
		}
		if r.reply != "!ysdone" {
			t.Errorf("Expected !ysdone, got %q", r.reply)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("SendCommand did not return")
	}
}

func TestConnectionStream(t *testing.T) {
	g := newTestGateway(t)
	before := g.ObjectCount()
	peer := startConnection(t, g, ConnectionConfig{})

	if got := peer.call(t, "S\nt\nstream\nsraw\\nbytes\ne\n"); got != protocol.VoidReply {
		t.Fatalf("Expected void before the stream, got %q", got)
	}
	peer.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, err := io.ReadAll(peer.reader)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "raw\nbytes" {
		t.Errorf("Expected the raw stream, got %q", data)
	}
	peer.expectClosed(t)
	if n := g.ObjectCount(); n != before {
		t.Errorf("Expected the stream to be released, got %d objects instead of %d", n, before)
	}
}

func TestConnectionStreamNotAReader(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{})

	if got := peer.call(t, "S\nt\ngreeting\nsbob\ne\n"); !strings.HasPrefix(got, "!xs") {
		t.Errorf("Expected an error for a non-stream result, got %q", got)
	}
	if got := peer.call(t, "c\nt\nadd\ni1\ni1\ne\n"); got != "!yi2\n" {
		t.Errorf("Expected the connection to stay usable, got %q", got)
	}
}

func TestConnectionExceptionCommand(t *testing.T) {
	g := newTestGateway(t)
	peer := startConnection(t, g, ConnectionConfig{})

	got := peer.call(t, "c\nt\nfail\ne\n")
	if !strings.HasPrefix(got, "!xr") {
		t.Fatalf("Expected an error reference, got %q", got)
	}
	id := strings.TrimSuffix(strings.TrimPrefix(got, "!xr"), "\n")

	trace := peer.call(t, "p\n"+id+"\ne\n")
	if !strings.HasPrefix(trace, "!ys") || !strings.Contains(trace, "boom") {
		t.Errorf("Expected a stack trace mentioning boom, got %q", trace)
	}
	if got := peer.call(t, "p\nt\ne\n"); !strings.HasPrefix(got, "!xs") {
		t.Errorf("Expected an error for a non-exception, got %q", got)
	}
	if got := peer.call(t, "p\no404\ne\n"); !strings.HasPrefix(got, "!x") {
		t.Errorf("Expected an error for a missing id, got %q", got)
	}
}

func TestSendTurn(t *testing.T) {
	g := newTestGateway(t)
	server, client := net.Pipe()
	defer client.Close()
	c := NewGatewayConnection(server, g, ConnectionConfig{})
	defer c.Close()

	turn := &sendTurn{conn: c, done: make(chan struct{})}
	if !turn.take() {
		t.Fatal("Expected a fresh turn to be free")
	}
	if turn.take() {
		t.Error("Expected a held turn to refuse a second sender")
	}
	turn.give()

	expired := make(chan struct{})
	if !turn.take() {
		t.Fatal("Expected the turn to be free again")
	}
	go func() {
		turn.expire()
		close(expired)
	}()
	select {
	case <-expired:
		t.Fatal("Expected expire to wait for the holder")
	case <-time.After(50 * time.Millisecond):
	}
	turn.give()
	<-expired
	if turn.take() {
		t.Error("Expected an expired turn to refuse senders")
	}
}
