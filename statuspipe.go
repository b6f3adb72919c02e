package py4go

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// maxStatusFrame bounds a single status message.
const maxStatusFrame = 1 << 20

// Serializer encodes and decodes status messages.
type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// MsgpackSerializer is the Serializer spoken on the status pipe.
type MsgpackSerializer struct{}

func (MsgpackSerializer) Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgpackSerializer) Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

// StatusMessage is one report from a launched interpreter. Type is "status"
// or "exception"; an exception report carries Error.
type StatusMessage struct {
	Type   string           `msgpack:"type"`
	Status string           `msgpack:"status,omitempty"`
	Port   int              `msgpack:"port,omitempty"`
	Error  *PythonException `msgpack:"error,omitempty"`
}

// Message types and status values.
const (
	StatusType    = "status"
	ExceptionType = "exception"

	StatusReady = "ready"
	StatusExit  = "exit"
)

// FrameTransport moves frames prefixed with a 4 byte big-endian length.
type FrameTransport struct {
	r    io.Reader
	w    io.Writer
	pool *bufferPool
}

// NewFrameTransport returns a transport reading from r and writing to w;
// either may be nil for a one-way pipe.
func NewFrameTransport(r io.Reader, w io.Writer) *FrameTransport {
	return &FrameTransport{r: r, w: w, pool: newBufferPool(4096, 4)}
}

// Send writes data as one frame.
func (t *FrameTransport) Send(data []byte) error {
	if t.w == nil {
		return errors.New("transport is read-only")
	}
	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)
	if _, err := t.w.Write(frame); err != nil {
		return errors.WithStack(err)
	}
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Receive reads the next frame.
func (t *FrameTransport) Receive() ([]byte, error) {
	if t.r == nil {
		return nil, errors.New("transport is write-only")
	}
	var header [4]byte
	if _, err := io.ReadFull(t.r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxStatusFrame {
		return nil, errors.Errorf("status frame of %d bytes is too large", n)
	}
	if int(n) > t.pool.size {
		data := make([]byte, n)
		_, err := io.ReadFull(t.r, data)
		return data, errors.WithStack(err)
	}

	buf := t.pool.get()[:n]
	defer t.pool.put(buf)
	if _, err := io.ReadFull(t.r, buf); err != nil {
		return nil, errors.WithStack(err)
	}
	return append([]byte(nil), buf...), nil
}

// Close closes both ends when they are closers.
func (t *FrameTransport) Close() error {
	var err error
	if c, ok := t.r.(io.Closer); ok {
		err = c.Close()
	}
	if c, ok := t.w.(io.Closer); ok {
		if werr := c.Close(); err == nil {
			err = werr
		}
	}
	return err
}

// StatusPipe decodes status messages from a transport.
type StatusPipe struct {
	transport  *FrameTransport
	serializer Serializer
}

// NewStatusPipe wraps transport with the msgpack serializer.
func NewStatusPipe(transport *FrameTransport) *StatusPipe {
	return &StatusPipe{transport: transport, serializer: MsgpackSerializer{}}
}

// Next returns the next message. io.EOF means the writer closed the pipe.
func (p *StatusPipe) Next() (StatusMessage, error) {
	var msg StatusMessage
	data, err := p.transport.Receive()
	if err != nil {
		return msg, err
	}
	if err := p.serializer.Unmarshal(data, &msg); err != nil {
		return msg, errors.Wrap(err, "bad status message")
	}
	return msg, nil
}

// Write sends msg.
func (p *StatusPipe) Write(msg StatusMessage) error {
	data, err := p.serializer.Marshal(msg)
	if err != nil {
		return errors.WithStack(err)
	}
	return p.transport.Send(data)
}

// bufferPool recycles receive buffers of one size through a channel.
type bufferPool struct {
	pool chan []byte
	size int
}

func newBufferPool(size, count int) *bufferPool {
	return &bufferPool{pool: make(chan []byte, count), size: size}
}

func (bp *bufferPool) get() []byte {
	select {
	case buf := <-bp.pool:
		return buf
	default:
		return make([]byte, bp.size)
	}
}

func (bp *bufferPool) put(buf []byte) {
	if cap(buf) != bp.size {
		return
	}
	select {
	case bp.pool <- buf[:bp.size]:
	default:
	}
}
