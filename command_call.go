package py4go

import (
	"context"
	"io"
	"math"
	"reflect"

	"github.com/pkg/errors"
	"github.com/richinsley/py4go/protocol"
)

// errConnectionDone ends a connection loop without an error, after commands
// such as stream and shutdown that consume the connection.
var errConnectionDone = errors.New("connection done")

// CallCommand invokes a method:
//
//	c
//	<target id | z:fqn>
//	<method>
//	<arg>*
//	e
func CallCommand(ctx context.Context, req *Request) error {
	targetID, err := req.ReadLine()
	if err != nil {
		return err
	}
	method, err := req.ReadLine()
	if err != nil {
		return err
	}
	args, err := req.DecodeArgs()
	if err != nil {
		return err
	}
	return req.ReplyObject(req.Gateway.Invoke(ctx, req.Cache, method, targetID, args))
}

// ConstructorCommand creates an instance:
//
//	i
//	<fqn>
//	<arg>*
//	e
func ConstructorCommand(ctx context.Context, req *Request) error {
	fqn, err := req.ReadLine()
	if err != nil {
		return err
	}
	args, err := req.DecodeArgs()
	if err != nil {
		return err
	}
	return req.ReplyObject(req.Gateway.InvokeConstructor(ctx, req.Cache, fqn, args))
}

// StreamCommand invokes a method that returns an io.Reader, replies void and
// then copies the reader's bytes to the connection, which is closed after.
func StreamCommand(ctx context.Context, req *Request) error {
	targetID, err := req.ReadLine()
	if err != nil {
		return err
	}
	method, err := req.ReadLine()
	if err != nil {
		return err
	}
	args, err := req.DecodeArgs()
	if err != nil {
		return err
	}

	ro := req.Gateway.Invoke(ctx, req.Cache, method, targetID, args)
	if ro.IsError() {
		return req.ReplyObject(ro)
	}
	obj, _ := req.Gateway.GetObject(ro.ID)
	if ro.ID != "" {
		defer req.Gateway.DeleteObject(ro.ID)
	}
	src, ok := obj.(io.Reader)
	if !ok {
		return req.Reply(protocol.ErrorMessageReply(method + " did not return a stream"))
	}
	if c, ok := src.(io.Closer); ok {
		defer c.Close()
	}

	if err := req.Reply(protocol.VoidReply); err != nil {
		return err
	}
	if _, err := io.Copy(req.Writer, src); err != nil {
		return &NetworkError{Phase: ErrorOnSend, Cause: err}
	}
	if err := req.Writer.Flush(); err != nil {
		return &NetworkError{Phase: ErrorOnSend, Cause: err}
	}
	return errConnectionDone
}

func (r *Request) object(id string) (interface{}, error) {
	obj, ok := r.Gateway.GetObject(id)
	if !ok {
		return nil, errors.Errorf("object %s not found", id)
	}
	return obj, nil
}

// lines reads the rest of the command and checks it has at least n lines.
func (r *Request) lines(n int) ([]string, error) {
	parts, err := r.ReadArgs()
	if err != nil {
		return nil, err
	}
	if len(parts) < n {
		return nil, protocol.Errorf("command %s needs %d arguments, got %d", r.Code, n, len(parts))
	}
	return parts, nil
}

func toInt(v interface{}) (int, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < math.MinInt || i > math.MaxInt {
			return 0, errors.Errorf("index %d out of range", i)
		}
		return int(i), nil
	}
	return 0, errors.Errorf("expected an integer, got %T", v)
}

func toInts(values []interface{}) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		n, err := toInt(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
