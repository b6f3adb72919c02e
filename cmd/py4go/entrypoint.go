package main

import (
	"context"
	"os"
	"time"

	"github.com/richinsley/py4go"
	"github.com/richinsley/py4go/collections"
)

// EntryPoint is the object the interpreter finds at id "t".
type EntryPoint struct {
	started time.Time
}

func newEntryPoint() *EntryPoint {
	return &EntryPoint{started: time.Now()}
}

// GetVersion returns the gateway version.
func (e *EntryPoint) GetVersion() string { return py4go.Version }

// Echo returns its argument unchanged.
func (e *EntryPoint) Echo(v interface{}) interface{} { return v }

// GetEnv returns an environment variable of the gateway process, or null.
func (e *EntryPoint) GetEnv(name string) interface{} {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return nil
}

// NewList returns an empty java.util.ArrayList.
func (e *EntryPoint) NewList() *collections.ArrayList {
	return collections.NewArrayList()
}

// Uptime returns the seconds since the gateway started.
func (e *EntryPoint) Uptime() float64 {
	return time.Since(e.started).Seconds()
}

// Greet calls greet(name) on a Python object and returns its answer.
func (e *EntryPoint) Greet(ctx context.Context, greeter *py4go.Proxy, name string) (string, error) {
	defer greeter.Release()
	return py4go.CallProxy[string](ctx, greeter, "greet", name)
}
