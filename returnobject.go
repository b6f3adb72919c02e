package py4go

import (
	"github.com/richinsley/py4go/protocol"
	"github.com/richinsley/py4go/reflection"
)

// ReturnKind classifies the outcome of a command.
type ReturnKind int

const (
	PrimitiveReturn ReturnKind = iota
	ReferenceReturn
	ListReturn
	MapReturn
	SetReturn
	ArrayReturn
	IteratorReturn
	ProxyReturn
	NullReturn
	VoidReturn
	ErrorReturn
)

// ReturnObject is the classified result of a command. Primitives travel by
// value; everything else was registered and travels as its id.
type ReturnObject struct {
	Kind      ReturnKind
	Primitive interface{}
	ID        string
	Size      int
	Message   string
}

// VoidReturnObject is the outcome of a member without a result.
var VoidReturnObject = ReturnObject{Kind: VoidReturn}

// NullReturnObject is a nil result.
var NullReturnObject = ReturnObject{Kind: NullReturn}

// ErrorMessage builds an error outcome that carries only a message.
func ErrorMessage(msg string) ReturnObject {
	return ReturnObject{Kind: ErrorReturn, Message: msg}
}

// IsError reports whether r is an error outcome.
func (r ReturnObject) IsError() bool { return r.Kind == ErrorReturn }

// CommandPart encodes r as a single tagged value.
func (r ReturnObject) CommandPart() string {
	switch r.Kind {
	case PrimitiveReturn:
		if c, ok := r.Primitive.(reflection.Char); ok {
			return string(protocol.StringType) + protocol.Escape(string(rune(c)))
		}
		if s, ok := protocol.EncodePrimitive(r.Primitive); ok {
			return s
		}
		return string(protocol.NullType)
	case ReferenceReturn:
		return string(protocol.ReferenceType) + r.ID
	case ListReturn:
		return string(protocol.ListType) + r.ID
	case MapReturn:
		return string(protocol.MapType) + r.ID
	case SetReturn:
		return string(protocol.SetType) + r.ID
	case ArrayReturn:
		return string(protocol.ArrayType) + r.ID
	case IteratorReturn:
		return string(protocol.IteratorType) + r.ID
	case ProxyReturn:
		return string(protocol.PythonProxy) + r.ID
	case VoidReturn:
		return string(protocol.VoidType)
	case ErrorReturn:
		if r.ID != "" {
			return string(protocol.ReferenceType) + r.ID
		}
		return string(protocol.StringType) + protocol.Escape(r.Message)
	}
	return string(protocol.NullType)
}

// Reply frames r as a complete reply line.
func (r ReturnObject) Reply() string {
	if r.Kind == ErrorReturn {
		if r.ID != "" {
			return protocol.ErrorReferenceReply(r.ID)
		}
		return protocol.ErrorMessageReply(r.Message)
	}
	return protocol.SuccessReply(r.CommandPart())
}
