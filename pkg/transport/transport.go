// Package transport provides the connected datagram boundary the engine
// sends and receives on. The engine never opens sockets itself; it consumes
// a Conn.
package transport

import "errors"

// ErrClosed is returned by Send and Recv after the connection is closed.
var ErrClosed = errors.New("transport: connection closed")

// Conn is a connected, datagram-oriented channel.
//
// Recv polls without blocking: ok is false when no datagram is currently
// available, which is distinct from a closed connection (ErrClosed) and from
// a genuine I/O fault (any other error).
type Conn interface {
	Send(p []byte) (int, error)
	Recv(p []byte) (n int, ok bool, err error)
	Close() error
}
