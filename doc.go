// Package py4go lets a Python interpreter drive Go objects, and call back into
// Python, over a local socket using the Py4J wire protocol.
//
// The interpreter connects to a GatewayServer and sends line-oriented
// commands: call a method, construct an object, read a field, index an
// array, import a class into a view, ask for help. Every Go value that cannot
// travel by value is kept in the Gateway registry under an id such as "o12"
// and the interpreter refers to it by that id until it sends a delete.
//
// # Architecture Overview
//
// A call from Python travels through four layers:
//
//  1. protocol: frames are read line by line and decoded into Go values.
//     "i42" is an int32, "sfoo" a string, "ro3" a registered object.
//
//  2. CommandRegistry: the command code selects a handler, e.g. "c" for a
//     method call. Handlers read their whole frame before decoding it so a
//     bad argument never desynchronizes the stream.
//
//  3. reflection: the Engine finds the overload with the lowest conversion
//     cost for the argument types, caching the choice per connection.
//
//  4. Gateway: the result is classified into a ReturnObject and written back
//     as a single reply line, e.g. "!yi3" or "!ylo7".
//
// # Starting a Gateway
//
//	server := py4go.NewGatewayServer(myEntryPoint,
//		py4go.WithConfig(py4go.DefaultConfig()),
//	)
//	if err := server.Serve(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// The entry point is bound to id "t", so from Python:
//
//	gateway = JavaGateway()
//	gateway.entry_point.getVersion()
//
// Go types become classes on demand. Types that need Java names, overloads
// or static members are registered explicitly:
//
//	classes := py4go.DefaultClasses()
//	classes.Register(reflection.NewClass("com.example.Point", &Point{}).
//		Constructor(NewPoint).
//		StaticMethod("origin", Origin))
//	server := py4go.NewGatewayServer(ep, py4go.WithGatewayOptions(py4go.WithClasses(classes)))
//
// # Calling Back into Python
//
// A Python object implementing Go-side interfaces arrives as a *Proxy.
// Proxy.Invoke and CallProxy send a call over the callback Client:
//
//	func (e *EntryPoint) Greet(ctx context.Context, greeter *py4go.Proxy) (string, error) {
//		defer greeter.Release()
//		return py4go.CallProxy[string](ctx, greeter, "greet", "gopher")
//	}
//
// Releasing the last reference, or letting the garbage collector reclaim the
// proxy, tells the interpreter it may forget the object.
//
// By default calls into Python use a pool of connections to the
// interpreter's callback server (CallbackClient). With Config.PinnedThread
// they go out on the connection that carried the command being executed
// (PythonClient), so a chain of nested calls between the two processes stays
// on one socket. Pass the ctx a handler received to keep the chain pinned.
//
// # Launching an Interpreter
//
// Launch starts a Python program with the gateway port and auth token in its
// environment and a status pipe on which it reports readiness and uncaught
// exceptions:
//
//	ip, err := py4go.Launch(ctx, py4go.LaunchOptions{
//		Script:      "client.py",
//		GatewayPort: server.Port(),
//	})
//	port, err := ip.WaitReady(ctx)
//	server.ResetCallbackClient("127.0.0.1", port)
//
// # Logging and Errors
//
// Components log through named commonlog loggers ("py4go.server",
// "py4go.connection", ...). Errors carry stacks from github.com/pkg/errors;
// the interpreter receives them with "%+v" formatting.
package py4go
