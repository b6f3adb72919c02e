package py4go

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/richinsley/py4go/protocol"
)

// MemoryCommand releases a registered object: m d <id> e. Protected ids are
// kept.
func MemoryCommand(ctx context.Context, req *Request) error {
	parts, err := req.lines(1)
	if err != nil {
		return err
	}
	if parts[0] != protocol.MemoryDelete {
		return req.Reply(protocol.ErrorMessageReply("Unknown Memory SubCommand Name: " + parts[0]))
	}
	if len(parts) < 2 {
		return protocol.Errorf("memory delete needs an id")
	}
	req.Gateway.DeleteObject(parts[1])
	return req.Reply(protocol.VoidReply)
}

// ExceptionCommand answers the stack trace of a registered error:
// p <id> e.
func ExceptionCommand(ctx context.Context, req *Request) error {
	parts, err := req.lines(1)
	if err != nil {
		return err
	}
	obj, err := req.object(parts[0])
	if err != nil {
		return err
	}
	var trace string
	switch x := obj.(type) {
	case *Throwable:
		trace = x.StackTrace()
	case error:
		trace = fmt.Sprintf("%+v", x)
	default:
		return req.Reply(protocol.ErrorMessageReply(parts[0] + " is not an exception"))
	}
	return req.ReplyObject(req.Gateway.GetReturnObject(trace))
}

// AuthCommand checks the peer's token: A <token> e. A wrong token gets an
// error reply and an AuthenticationError, which ends the connection.
func AuthCommand(ctx context.Context, req *Request) error {
	parts, err := req.lines(1)
	if err != nil {
		return err
	}
	token := protocol.Unescape(parts[0])
	if req.AuthToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(req.AuthToken)) == 1 {
		if req.Conn != nil {
			req.Conn.authenticated = true
		}
		return req.Reply(protocol.VoidReply)
	}
	if err := req.Reply(protocol.ErrorMessageReply("Authentication error: bad auth token received.")); err != nil {
		return err
	}
	return &AuthenticationError{Msg: "bad auth token received"}
}

// ShutdownCommand stops the server: s e. No reply is written; the server
// shuts down in the background so this worker is not waited on.
func ShutdownCommand(ctx context.Context, req *Request) error {
	if err := req.ReadEnd(); err != nil {
		return err
	}
	if req.Server != nil {
		go req.Server.Shutdown()
	}
	return errConnectionDone
}
