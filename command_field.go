package py4go

import (
	"context"

	"github.com/richinsley/py4go/protocol"
)

// FieldCommand reads or writes an exported field:
//
//	f g <target id> <field> e
//	f s <target id> <field> <value> e
//
// A missing field answers "!yo".
func FieldCommand(ctx context.Context, req *Request) error {
	parts, err := req.lines(1)
	if err != nil {
		return err
	}
	engine := req.Gateway.Engine()

	switch parts[0] {
	case protocol.FieldGet:
		if len(parts) < 3 {
			return protocol.Errorf("field get needs a target and a name")
		}
		target, err := req.object(parts[1])
		if err != nil {
			return err
		}
		v, ok := engine.GetField(target, parts[2])
		if !ok {
			return req.Reply(protocol.NoSuchFieldReply)
		}
		return req.ReplyObject(req.Gateway.GetReturnObject(v))

	case protocol.FieldSet:
		if len(parts) < 4 {
			return protocol.Errorf("field set needs a target, a name and a value")
		}
		target, err := req.object(parts[1])
		if err != nil {
			return err
		}
		value, err := req.Gateway.DecodeValue(parts[3])
		if err != nil {
			return err
		}
		found, err := engine.SetField(target, parts[2], value)
		if !found {
			return req.Reply(protocol.NoSuchFieldReply)
		}
		if err != nil {
			return err
		}
		return req.Reply(protocol.VoidReply)
	}
	return req.Reply(protocol.ErrorMessageReply("Unknown Field SubCommand Name: " + parts[0]))
}

// ArrayCommand works on slices and arrays:
//
//	a g <array id> <index> e
//	a s <array id> <index> <value> e
//	a l <array id> <index>* e
//	a e <array id> e
//	a c <element class> <dimension>* e
func ArrayCommand(ctx context.Context, req *Request) error {
	parts, err := req.lines(2)
	if err != nil {
		return err
	}
	g := req.Gateway
	engine := g.Engine()

	if parts[0] == protocol.ArrayCreate {
		elem, err := g.DecodeValue(parts[1])
		if err != nil {
			return err
		}
		name, ok := elem.(string)
		if !ok {
			return protocol.Errorf("array element class must be a string")
		}
		dims, err := decodeInts(g, parts[2:])
		if err != nil {
			return err
		}
		arr, err := engine.NewArray(name, dims)
		if err != nil {
			return err
		}
		return req.ReplyObject(g.GetReturnObject(arr))
	}

	arr, err := req.object(parts[1])
	if err != nil {
		return err
	}
	switch parts[0] {
	case protocol.ArrayGet:
		idx, err := decodeInts(g, parts[2:3])
		if err != nil {
			return err
		}
		if len(idx) == 0 {
			return protocol.Errorf("array get needs an index")
		}
		v, err := engine.ArrayGet(arr, idx[0])
		if err != nil {
			return err
		}
		return req.ReplyObject(g.GetReturnObject(v))

	case protocol.ArraySet:
		if len(parts) < 4 {
			return protocol.Errorf("array set needs an index and a value")
		}
		idx, err := decodeInts(g, parts[2:3])
		if err != nil {
			return err
		}
		value, err := g.DecodeValue(parts[3])
		if err != nil {
			return err
		}
		if err := engine.ArraySet(arr, idx[0], value); err != nil {
			return err
		}
		return req.Reply(protocol.VoidReply)

	case protocol.ArraySlice:
		indices, err := decodeInts(g, parts[2:])
		if err != nil {
			return err
		}
		out, err := engine.ArraySlice(arr, indices)
		if err != nil {
			return err
		}
		return req.ReplyObject(g.GetReturnObject(out))

	case protocol.ArrayLen:
		n, err := engine.ArrayLen(arr)
		if err != nil {
			return err
		}
		return req.ReplyObject(g.GetReturnObject(n))
	}
	return req.Reply(protocol.ErrorMessageReply("Unknown Array SubCommand Name: " + parts[0]))
}

func decodeInts(g *Gateway, parts []string) ([]int, error) {
	values, err := g.DecodeArgs(parts)
	if err != nil {
		return nil, err
	}
	return toInts(values)
}
