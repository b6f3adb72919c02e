package py4go

import (
	"context"

	"github.com/pkg/errors"
	"github.com/richinsley/py4go/collections"
	"github.com/richinsley/py4go/protocol"
)

// ListCommand runs the list operations the interpreter's list wrapper maps
// its operators to. The first argument is always a list id:
//
//	l s|r|x|n <list> e     sort, reverse, max, min
//	l l <list> <index>* e  new list of the picked elements
//	l a <list> <list> e    concatenation
//	l m <list> <n> e       repetition into a new list
//	l i <list> <n> e       repetition in place; n <= 0 clears
//	l f <list> <value> e   occurrence count
func ListCommand(ctx context.Context, req *Request) error {
	parts, err := req.lines(2)
	if err != nil {
		return err
	}
	g := req.Gateway
	list, err := listArg(req, parts[1])
	if err != nil {
		return err
	}

	switch parts[0] {
	case protocol.ListSort:
		al, err := arrayList(list)
		if err != nil {
			return err
		}
		if err := collections.Sort(al); err != nil {
			return req.Reply(protocol.ErrorReply)
		}
		return req.Reply(protocol.VoidReply)

	case protocol.ListReverse:
		al, err := arrayList(list)
		if err != nil {
			return err
		}
		collections.Reverse(al)
		return req.Reply(protocol.VoidReply)

	case protocol.ListMax, protocol.ListMin:
		pick := collections.Max
		if parts[0] == protocol.ListMin {
			pick = collections.Min
		}
		v, err := pick(list)
		if err != nil {
			return req.Reply(protocol.ErrorReply)
		}
		return req.ReplyObject(g.GetReturnObject(v))

	case protocol.ListSlice:
		indices, err := decodeInts(g, parts[2:])
		if err != nil {
			return err
		}
		out, err := collections.Pick(list, indices)
		if err != nil {
			return err
		}
		return req.ReplyObject(g.GetReturnObject(out))

	case protocol.ListConcat:
		if len(parts) < 3 {
			return protocol.Errorf("list concat needs two lists")
		}
		other, err := listArg(req, parts[2])
		if err != nil {
			return err
		}
		return req.ReplyObject(g.GetReturnObject(collections.Concat(list, other)))

	case protocol.ListMult, protocol.ListIMult:
		n, err := decodeInts(g, parts[2:3])
		if err != nil {
			return err
		}
		if len(n) == 0 {
			return protocol.Errorf("list multiply needs a count")
		}
		if parts[0] == protocol.ListMult {
			return req.ReplyObject(g.GetReturnObject(collections.Mult(list, n[0])))
		}
		al, err := arrayList(list)
		if err != nil {
			return err
		}
		collections.IMult(al, n[0])
		return req.Reply(protocol.VoidReply)

	case protocol.ListCount:
		if len(parts) < 3 {
			return protocol.Errorf("list count needs a value")
		}
		v, err := g.DecodeValue(parts[2])
		if err != nil {
			return err
		}
		return req.ReplyObject(g.GetReturnObject(collections.Count(list, v)))
	}
	return req.Reply(protocol.ErrorReply)
}

func listArg(req *Request, id string) (collections.List, error) {
	obj, err := req.object(id)
	if err != nil {
		return nil, err
	}
	list, ok := obj.(collections.List)
	if !ok {
		return nil, errors.Errorf("%s is not a list", id)
	}
	return list, nil
}

func arrayList(list collections.List) (*collections.ArrayList, error) {
	al, ok := list.(*collections.ArrayList)
	if !ok {
		return nil, errors.Errorf("%T cannot be modified in place", list)
	}
	return al, nil
}
