package mysql

import (
	"io"
	"net"
	"time"
)

const defaultBufSize = 4 * 1024

// readBuffer is a bufio-like reader specialized for the MySQL wire
// protocol: communication on a connection is strictly request/response
// (§5: "a new request MUST NOT be issued while a prior Result still has
// unread packets"), so one buffer serves both reading and writing.
// Adapted from the teacher's buffer/bufio pair, collapsed into a single
// type since this client has no concurrent reader/writer goroutines to
// double-buffer between.
type readBuffer struct {
	buf     []byte
	nc      net.Conn
	length  int
	timeout time.Duration
}

func newReadBuffer(nc net.Conn) *readBuffer {
	return &readBuffer{
		buf: make([]byte, defaultBufSize),
		nc:  nc,
	}
}

// readNext returns the next n bytes from the connection, applying the
// configured read deadline. Any short read is the caller's cue to mark
// the connection undefined (§4.1).
func (b *readBuffer) readNext(n int) ([]byte, error) {
	if b.timeout > 0 {
		if err := b.nc.SetReadDeadline(time.Now().Add(b.timeout)); err != nil {
			return nil, err
		}
	}
	if cap(b.buf) < n {
		b.buf = make([]byte, n)
	}
	b.buf = b.buf[:n]
	if _, err := io.ReadFull(b.nc, b.buf); err != nil {
		return nil, err
	}
	return b.buf, nil
}

// takeSmallBuffer returns a buffer of the requested size backed by the
// write buffer when possible, matching the teacher's takeSmallBuffer.
func (b *readBuffer) takeSmallBuffer(length int) ([]byte, error) {
	if b.length > 0 {
		return nil, ErrBusyBuffer
	}
	if length <= cap(b.buf) {
		return b.buf[:length], nil
	}
	return make([]byte, length), nil
}

func (b *readBuffer) writeWithDeadline(data []byte) (int, error) {
	if b.timeout > 0 {
		if err := b.nc.SetWriteDeadline(time.Now().Add(b.timeout)); err != nil {
			return 0, err
		}
	}
	return b.nc.Write(data)
}
