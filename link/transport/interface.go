package transport

import (
	"errors"

	"github.com/ValentinKolb/rlink/link/common"
)

// ErrClosed is returned by Send and Receive once the transport was closed.
// A receive loop seeing this error terminates without reporting it.
var ErrClosed = errors.New("transport: closed")

// --------------------------------------------------------------------------
// Datagram Transport
// --------------------------------------------------------------------------

// IDatagramTransport is the interface for the datagram transport layer.
// It binds a local endpoint, sends to one fixed remote endpoint and receives
// from any sender. Datagrams may be lost, duplicated or reordered, the
// transport gives no delivery guarantee.
type IDatagramTransport interface {
	// Open binds the local endpoint and resolves the remote endpoint.
	// An error means the transport is unusable (bind failure).
	Open(config common.TransportConfig) error
	// Send transmits one datagram to the remote endpoint (fire and forget)
	Send(data []byte) error
	// Receive blocks until a datagram arrives and copies it into buf.
	// It returns ErrClosed once Close was called, which unblocks a pending Receive.
	Receive(buf []byte) (n int, err error)
	// Close releases the socket. Calling Close more than once is a no-op.
	Close() error
	// LocalAddr returns the bound local address (empty before Open)
	LocalAddr() string
	// GetName returns the name of the transport type (e.g. "udp", "unixgram")
	GetName() string
}
