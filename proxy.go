package py4go

import (
	"context"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/richinsley/py4go/protocol"
	"github.com/tliron/commonlog"
)

// DefaultGCQueueSize bounds the release notices waiting to be sent.
const DefaultGCQueueSize = 1024

// Proxy is a handle on an object that lives in the interpreter. Its methods
// are called with Invoke or CallProxy. A proxy starts with one reference;
// when the last reference is released the interpreter is told it may forget
// the object. A proxy dropped without Release is reported the same way once
// the garbage collector reclaims it.
type Proxy struct {
	id         string
	interfaces []string
	gateway    *Gateway

	refs     atomic.Int32
	released atomic.Bool
	cleanup  runtime.Cleanup
}

// remoteProxied is implemented by proxies and by wrappers embedding one, so
// a proxy handed back to the interpreter travels as its own id.
type remoteProxied interface {
	RemoteProxy() *Proxy
}

func newProxy(g *Gateway, id string, interfaces []string) *Proxy {
	p := &Proxy{id: id, interfaces: interfaces, gateway: g}
	p.refs.Store(1)
	if g.notifies(id) {
		p.cleanup = runtime.AddCleanup(p, g.notifyRelease, id)
	}
	return p
}

// ID returns the interpreter-side id.
func (p *Proxy) ID() string { return p.id }

// Interfaces returns the host interface names the object claims.
func (p *Proxy) Interfaces() []string { return p.interfaces }

// RemoteProxy returns p.
func (p *Proxy) RemoteProxy() *Proxy { return p }

// Retain adds a reference. It fails once the proxy is released.
func (p *Proxy) Retain() (*Proxy, error) {
	for {
		n := p.refs.Load()
		if n <= 0 {
			return nil, errors.Errorf("proxy %s is released", p.id)
		}
		if p.refs.CompareAndSwap(n, n+1) {
			return p, nil
		}
	}
}

// Release drops a reference. The last one sends the release notice.
func (p *Proxy) Release() {
	if p.refs.Add(-1) > 0 {
		return
	}
	p.finish()
}

// Close releases every reference at once.
func (p *Proxy) Close() error {
	p.refs.Store(0)
	p.finish()
	return nil
}

func (p *Proxy) finish() {
	if !p.released.CompareAndSwap(false, true) {
		return
	}
	if p.gateway.notifies(p.id) {
		p.cleanup.Stop()
	}
	p.gateway.notifyRelease(p.id)
}

// Invoke calls method on the remote object and returns the decoded result.
// Host objects among args are registered so the interpreter can reach them.
func (p *Proxy) Invoke(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	if p.released.Load() {
		return nil, errors.Errorf("proxy %s is released", p.id)
	}
	client := p.gateway.Client()
	if client == nil {
		return nil, &NetworkError{Phase: OtherPhase, Cause: errors.New("no callback client")}
	}

	parts := make([]string, 0, len(args)+2)
	parts = append(parts, p.id, method)
	for _, a := range args {
		parts = append(parts, p.gateway.EncodeArg(a))
	}
	line, err := client.SendCommand(ctx, protocol.BuildCommand(protocol.CallProxyCommand, parts...), true)
	if err != nil {
		return nil, err
	}
	runtime.KeepAlive(p)
	return p.gateway.decodeReply(method, line)
}

// CallProxy invokes method on p and converts the result to T with the
// argument conversion rules. An impossible conversion is an EngineError.
func CallProxy[T any](ctx context.Context, p *Proxy, method string, args ...interface{}) (T, error) {
	var zero T
	v, err := p.Invoke(ctx, method, args...)
	if err != nil {
		return zero, err
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	rv, err := p.gateway.Engine().Classes.ConvertTo(v, t)
	if err != nil {
		return zero, err
	}
	out, ok := rv.Interface().(T)
	if !ok {
		return zero, nil
	}
	return out, nil
}

// decodeReply turns the interpreter's reply to a call into a value or an
// error. An error pointing at a registered host error returns that error.
func (g *Gateway) decodeReply(command, line string) (interface{}, error) {
	reply, err := protocol.ParseReply(line)
	if err != nil {
		return nil, err
	}
	if !reply.IsError() {
		return g.DecodeValue(reply.Payload)
	}
	if id, ok := strings.CutPrefix(reply.Payload, string(protocol.ReferenceType)); ok {
		if obj, found := g.GetObject(id); found {
			if err, isErr := obj.(error); isErr {
				return nil, err
			}
		}
	}
	msg := strings.TrimPrefix(reply.Payload, string(protocol.StringType))
	return nil, &RemoteError{Command: command, Message: protocol.Unescape(msg)}
}

func (g *Gateway) notifies(id string) bool {
	return g.memoryManagement && id != protocol.EntryPointID
}

func (g *Gateway) notifyRelease(id string) {
	if !g.notifies(id) || g.notices == nil {
		return
	}
	g.notices.enqueue(id)
}

// gcNotifier sends release notices from one goroutine so that releases never
// block on the network. When the queue is full the notice is dropped; the
// interpreter eventually times abandoned proxies out on its own.
type gcNotifier struct {
	gateway *Gateway
	queue   chan string
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	log     commonlog.Logger
}

func newGCNotifier(g *Gateway, size int) *gcNotifier {
	if size <= 0 {
		size = DefaultGCQueueSize
	}
	n := &gcNotifier{
		gateway: g,
		queue:   make(chan string, size),
		done:    make(chan struct{}),
		log:     commonlog.GetLogger("py4go.proxy"),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

func (n *gcNotifier) enqueue(id string) {
	select {
	case <-n.done:
	case n.queue <- id:
	default:
		n.log.Warningf("release notice queue full, dropping notice for %s", id)
	}
}

func (n *gcNotifier) run() {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case id := <-n.queue:
			n.send(id)
		}
	}
}

func (n *gcNotifier) send(id string) {
	client := n.gateway.Client()
	if client == nil {
		return
	}
	cmd := protocol.BuildCommand(protocol.GarbageCollectProxy, id)
	if _, err := client.SendCommand(context.Background(), cmd, false); err != nil {
		n.log.Infof("release notice for %s not delivered: %v", id, err)
		return
	}
	n.log.Debugf("released proxy %s", id)
}

// close stops the sender. Queued notices are dropped.
func (n *gcNotifier) close() {
	n.once.Do(func() { close(n.done) })
	n.wg.Wait()
}
