// Package protocol implements the line-oriented wire format spoken between the
// gateway and the interpreter process.
//
// A request is a command code line followed by argument lines and the end
// marker:
//
//	c
//	o12
//	size
//	e
//
// A reply is a single line made of the return marker, a status character, a
// type tag and a payload:
//
//	!yi3
//
// Every scalar argument or payload starts with a one character type tag. Strings
// are escaped so that a value never spans more than one line.
package protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

// Frame markers.
const (
	End           = "e"
	EndOutput     = "\n"
	ReturnMessage = '!'
	Quit          = "q"

	Success    = 'y'
	Error      = 'x'
	FatalError = 'z'

	EscapeChar = '\\'
)

// Type tags.
const (
	BytesType     = 'j'
	IntegerType   = 'i'
	LongType      = 'L'
	BooleanType   = 'b'
	DoubleType    = 'd'
	DecimalType   = 'D'
	StringType    = 's'
	ReferenceType = 'r'
	ListType      = 'l'
	SetType       = 'h'
	ArrayType     = 't'
	MapType       = 'a'
	IteratorType  = 'g'
	NullType      = 'n'
	PythonProxy   = 'f'
	PackageType   = 'p'
	ClassType     = 'c'
	MethodType    = 'm'
	NoMemberType  = 'o'
	VoidType      = 'v'
)

// Command codes understood by the gateway.
const (
	CallCommand        = "c"
	ConstructorCommand = "i"
	FieldCommand       = "f"
	ArrayCommand       = "a"
	ReflectionCommand  = "r"
	JVMViewCommand     = "j"
	MemoryCommand      = "m"
	HelpCommand        = "h"
	ExceptionCommand   = "p"
	StreamCommand      = "S"
	AuthCommand        = "A"
	ShutdownCommand    = "s"
	ListCommand        = "l"
	DirCommand         = "d"
)

// Commands the gateway sends to the interpreter.
const (
	CallProxyCommand    = "c"
	GarbageCollectProxy = "g"
)

// Sub-command codes.
const (
	FieldGet = "g"
	FieldSet = "s"

	ArrayGet    = "g"
	ArraySet    = "s"
	ArraySlice  = "l"
	ArrayLen    = "e"
	ArrayCreate = "c"

	ReflectionUnknown   = "u"
	ReflectionMember    = "m"
	ReflectionJavaClass = "c"

	JVMViewCreate       = "c"
	JVMViewImport       = "i"
	JVMViewRemoveImport = "r"
	JVMViewQuery        = "s"

	MemoryDelete = "d"

	HelpObject = "o"
	HelpClass  = "c"

	ListSort    = "s"
	ListReverse = "r"
	ListMax     = "x"
	ListMin     = "n"
	ListSlice   = "l"
	ListConcat  = "a"
	ListMult    = "m"
	ListIMult   = "i"
	ListCount   = "f"

	DirFields  = "f"
	DirMethods = "m"
	DirStatic  = "s"
	DirJVMView = "v"
)

// Well-known object ids.
const (
	EntryPointID     = "t"
	DefaultJVMViewID = "j"
	GatewayServerID  = "GATEWAY_SERVER"
	StaticPrefix     = "z:"
	ObjectIDPrefix   = "o"
)

// Canned replies.
const (
	ErrorReply       = "!x\n"
	VoidReply        = "!yv\n"
	NoSuchFieldReply = "!yo\n"
)

// ProtocolError reports a malformed frame, a missing sentinel or an unknown
// command code.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}

// Errorf builds a ProtocolError from a format string, with a stack trace.
func Errorf(format string, args ...interface{}) error {
	return errors.WithStack(&ProtocolError{Msg: fmt.Sprintf(format, args...)})
}
