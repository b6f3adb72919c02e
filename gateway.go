package py4go

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/apd/v3"
	"github.com/pkg/errors"
	"github.com/richinsley/py4go/collections"
	"github.com/richinsley/py4go/protocol"
	"github.com/richinsley/py4go/reflection"
	"github.com/tliron/commonlog"
)

// ProxyFactory turns a remote proxy into a host value for one interface name,
// typically a struct embedding the proxy and implementing a Go interface.
type ProxyFactory func(*Proxy) interface{}

// Gateway is the object registry shared by every connection of a server. It
// hands out ids for host objects returned to the interpreter, resolves ids
// found in commands, and invokes members through the reflection engine.
type Gateway struct {
	entryPoint  interface{}
	engine      *reflection.Engine
	defaultView *JVMView

	objects sync.Map
	counter atomic.Int64

	clientMu sync.RWMutex
	client   Client

	factories        sync.Map
	notices          *gcNotifier
	memoryManagement bool
	gcQueueSize      int

	log commonlog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithClasses replaces the default class registry.
func WithClasses(classes *reflection.ClassRegistry) GatewayOption {
	return func(g *Gateway) {
		g.engine = reflection.NewEngine(classes)
	}
}

// WithMemoryManagement controls whether released proxies notify the
// interpreter.
func WithMemoryManagement(enabled bool) GatewayOption {
	return func(g *Gateway) {
		g.memoryManagement = enabled
	}
}

// WithGCQueueSize bounds the number of pending proxy release notices.
func WithGCQueueSize(n int) GatewayOption {
	return func(g *Gateway) {
		g.gcQueueSize = n
	}
}

// WithClient sets the outbound client used by proxies.
func WithClient(c Client) GatewayOption {
	return func(g *Gateway) {
		g.client = c
	}
}

// NewGateway returns a gateway exposing entryPoint. Call Startup before use.
func NewGateway(entryPoint interface{}, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		entryPoint:       entryPoint,
		memoryManagement: true,
		gcQueueSize:      DefaultGCQueueSize,
		log:              commonlog.GetLogger("py4go.gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.engine == nil {
		g.engine = reflection.NewEngine(DefaultClasses())
	}
	g.defaultView = NewJVMView("default", protocol.DefaultJVMViewID)
	return g
}

// Startup binds the entry point and the default view and starts the proxy
// release notifier.
func (g *Gateway) Startup() {
	if g.entryPoint != nil {
		g.objects.Store(protocol.EntryPointID, g.entryPoint)
	}
	g.objects.Store(protocol.DefaultJVMViewID, g.defaultView)
	if g.notices == nil {
		g.notices = newGCNotifier(g, g.gcQueueSize)
	}
}

// Shutdown drops every registered object. With shutdownClient the outbound
// client is closed as well.
func (g *Gateway) Shutdown(shutdownClient bool) {
	g.objects.Range(func(k, _ interface{}) bool {
		g.objects.Delete(k)
		return true
	})
	if g.notices != nil {
		g.notices.close()
	}
	if shutdownClient {
		if c := g.Client(); c != nil {
			c.Shutdown()
		}
	}
}

// Engine returns the reflection engine.
func (g *Gateway) Engine() *reflection.Engine { return g.engine }

// EntryPoint returns the object bound to "t".
func (g *Gateway) EntryPoint() interface{} { return g.entryPoint }

// DefaultView returns the view bound to "j".
func (g *Gateway) DefaultView() *JVMView { return g.defaultView }

// Client returns the outbound client.
func (g *Gateway) Client() Client {
	g.clientMu.RLock()
	defer g.clientMu.RUnlock()
	return g.client
}

// SetClient replaces the outbound client and returns the previous one.
func (g *Gateway) SetClient(c Client) Client {
	g.clientMu.Lock()
	defer g.clientMu.Unlock()
	old := g.client
	g.client = c
	return old
}

// MemoryManagement reports whether proxy releases are sent to the
// interpreter.
func (g *Gateway) MemoryManagement() bool { return g.memoryManagement }

// PutNewObject registers obj under a fresh id.
func (g *Gateway) PutNewObject(obj interface{}) string {
	id := protocol.ObjectIDPrefix + strconv.FormatInt(g.counter.Add(1)-1, 10)
	g.objects.Store(id, obj)
	return id
}

// PutObject binds obj to a fixed id.
func (g *Gateway) PutObject(id string, obj interface{}) {
	g.objects.Store(id, obj)
}

// GetObject looks an id up.
func (g *Gateway) GetObject(id string) (interface{}, bool) {
	return g.objects.Load(id)
}

// DeleteObject removes id from the registry. Protected ids stay.
func (g *Gateway) DeleteObject(id string) {
	switch id {
	case protocol.EntryPointID, protocol.DefaultJVMViewID, protocol.GatewayServerID:
		return
	}
	g.objects.Delete(id)
}

// ObjectCount returns the number of registered objects.
func (g *Gateway) ObjectCount() int {
	n := 0
	g.objects.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// RegisterProxyInterface installs the factory used when the interpreter
// passes a proxy whose first interface is name.
func (g *Gateway) RegisterProxyInterface(name string, factory ProxyFactory) {
	g.factories.Store(name, factory)
}

// ClassForName resolves a class name, trying the imports of view for simple
// names.
func (g *Gateway) ClassForName(name string, view *JVMView) (*reflection.Class, bool) {
	if c, ok := g.engine.ForName(name); ok {
		return c, true
	}
	if view == nil || strings.Contains(name, ".") {
		return nil, false
	}
	if fqn, ok := view.SingleImport(name); ok {
		if c, ok := g.engine.ForName(fqn); ok {
			return c, true
		}
	}
	for _, pkg := range view.StarImports() {
		if c, ok := g.engine.ForName(pkg + "." + name); ok {
			return c, true
		}
	}
	return nil, false
}

// ConstructorCall is accepted by Invoke as a constructor name, like "<init>".
const ConstructorCall = "ConstructorCall"

// Invoke calls method name on the object registered as targetID, or on the
// class named after the static prefix "z:". A constructor name on a class
// target creates an instance.
func (g *Gateway) Invoke(ctx context.Context, cache *reflection.ResolutionCache, name, targetID string, args []interface{}) ReturnObject {
	if cls, ok := strings.CutPrefix(targetID, protocol.StaticPrefix); ok || targetID == "" {
		if name == reflection.ConstructorName || name == ConstructorCall {
			return g.InvokeConstructor(ctx, cache, cls, args)
		}
		class, found := g.ClassForName(cls, g.defaultView)
		if !found {
			return ErrorMessage(fmt.Sprintf("class %s not found", cls))
		}
		mi, err := g.engine.GetStaticMethod(cache, class, name, args)
		if err != nil {
			return g.ErrorReturn(err)
		}
		return g.invoke(ctx, mi, nil, args)
	}

	target, ok := g.GetObject(targetID)
	if !ok {
		return ErrorMessage(fmt.Sprintf("object %s not found", targetID))
	}
	mi, err := g.engine.GetMethod(cache, target, name, args)
	if err != nil {
		return g.ErrorReturn(err)
	}
	return g.invoke(ctx, mi, target, args)
}

// InvokeConstructor creates an instance of the class named fqn.
func (g *Gateway) InvokeConstructor(ctx context.Context, cache *reflection.ResolutionCache, fqn string, args []interface{}) ReturnObject {
	class, ok := g.ClassForName(fqn, g.defaultView)
	if !ok {
		return ErrorMessage(fmt.Sprintf("class %s not found", fqn))
	}
	mi, err := g.engine.GetConstructor(cache, class, args)
	if err != nil {
		return g.ErrorReturn(err)
	}
	return g.invoke(ctx, mi, nil, args)
}

func (g *Gateway) invoke(ctx context.Context, mi *reflection.MethodInvoker, target interface{}, args []interface{}) ReturnObject {
	result, err := mi.Invoke(ctx, target, args)
	if err != nil {
		return g.ErrorReturn(err)
	}
	return g.GetReturnObject(result)
}

// ErrorReturn classifies err. Failures raised by host code are registered so
// the interpreter can inspect them; anything else travels as its message with
// stack trace.
func (g *Gateway) ErrorReturn(err error) ReturnObject {
	var ie *InvocationError
	if errors.As(err, &ie) {
		g.log.Debugf("invocation failed: %v", ie)
		return ReturnObject{Kind: ErrorReturn, ID: g.PutNewObject(NewThrowable(ie))}
	}
	return ErrorMessage(fmt.Sprintf("%+v", err))
}

// GetReturnObject classifies a value, registering it when it cannot travel
// by value.
func (g *Gateway) GetReturnObject(v interface{}) ReturnObject {
	if v == reflection.ReturnVoid {
		return VoidReturnObject
	}
	if isNilValue(v) {
		return NullReturnObject
	}
	switch x := v.(type) {
	case bool, string, []byte, reflection.Char,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, *apd.Decimal:
		return ReturnObject{Kind: PrimitiveReturn, Primitive: v}
	case remoteProxied:
		return ReturnObject{Kind: ProxyReturn, ID: x.RemoteProxy().ID()}
	case collections.List:
		return ReturnObject{Kind: ListReturn, ID: g.PutNewObject(v), Size: x.Size()}
	case collections.Map:
		return ReturnObject{Kind: MapReturn, ID: g.PutNewObject(v), Size: x.Size()}
	}
	if reflection.IsArray(v) {
		return ReturnObject{Kind: ArrayReturn, ID: g.PutNewObject(v), Size: reflect.ValueOf(v).Len()}
	}
	switch x := v.(type) {
	case collections.Set:
		return ReturnObject{Kind: SetReturn, ID: g.PutNewObject(v), Size: x.Size()}
	case *collections.Iterator:
		return ReturnObject{Kind: IteratorReturn, ID: g.PutNewObject(v)}
	}
	return ReturnObject{Kind: ReferenceReturn, ID: g.PutNewObject(v)}
}

// EncodeArg encodes a value sent to the interpreter.
func (g *Gateway) EncodeArg(v interface{}) string {
	r := g.GetReturnObject(v)
	if r.Kind == VoidReturn {
		return string(protocol.NullType)
	}
	return r.CommandPart()
}

// DecodeArgs decodes argument lines and resolves references and proxies.
func (g *Gateway) DecodeArgs(parts []string) ([]interface{}, error) {
	args := make([]interface{}, len(parts))
	for i, p := range parts {
		v, err := g.DecodeValue(p)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// DecodeValue decodes one tagged value.
func (g *Gateway) DecodeValue(part string) (interface{}, error) {
	v, err := protocol.Decode(part)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case protocol.Ref:
		obj, ok := g.GetObject(string(x))
		if !ok {
			return nil, errors.Errorf("object %s not found", string(x))
		}
		return obj, nil
	case protocol.ProxyRef:
		return g.proxyValue(x), nil
	}
	return v, nil
}

func (g *Gateway) proxyValue(ref protocol.ProxyRef) interface{} {
	p := newProxy(g, ref.ID, ref.Interfaces)
	for _, iface := range ref.Interfaces {
		if f, ok := g.factories.Load(iface); ok {
			return f.(ProxyFactory)(p)
		}
	}
	return p
}

func isNilValue(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
