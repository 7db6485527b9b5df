package base

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/rlink/link/common"
	"github.com/ValentinKolb/rlink/link/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger(common.LoggerTransport)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IConnector defines the interface for transport-specific socket operations
type IConnector interface {
	// Listen binds a datagram socket to the local endpoint
	Listen(endpoint string) (net.PacketConn, error)

	// Resolve converts the remote endpoint into an address for WriteTo
	Resolve(endpoint string) (net.Addr, error)

	// UpgradeConnection applies protocol-specific settings to a bound socket
	UpgradeConnection(conn net.PacketConn, config common.TransportConfig) error

	// Cleanup releases resources left behind after the socket was closed
	Cleanup(endpoint string) error

	// GetName returns the name of the transport type (e.g., "udp", "unixgram")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// datagramTransport implements the core transport functionality
// independent of the specific socket type (udp, unixgram, etc.)
type datagramTransport struct {
	connector IConnector
	config    common.TransportConfig
	conn      net.PacketConn
	remote    net.Addr
	mu        sync.RWMutex // Protects conn and remote
	closed    atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for udp, unixgram, etc.)
// -----------------------------------------------------------

// NewBaseTransport creates a new base datagram transport with the specified connector
func NewBaseTransport(connector IConnector) transport.IDatagramTransport {
	return &datagramTransport{
		connector: connector,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IDatagramTransport)
// --------------------------------------------------------------------------

func (t *datagramTransport) Open(config common.TransportConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil || t.closed.Load() {
		return fmt.Errorf("%s transport already opened", t.connector.GetName())
	}

	// Bind the local socket
	conn, err := t.connector.Listen(config.LocalEndpoint)
	if err != nil {
		return fmt.Errorf("failed to bind %s socket at %s: %w", t.connector.GetName(), config.LocalEndpoint, err)
	}

	// Resolve the fixed peer
	remote, err := t.connector.Resolve(config.RemoteEndpoint)
	if err != nil {
		conn.Close()
		_ = t.connector.Cleanup(config.LocalEndpoint)
		return fmt.Errorf("failed to resolve remote endpoint %s: %w", config.RemoteEndpoint, err)
	}

	// Apply socket settings
	if err := t.connector.UpgradeConnection(conn, config); err != nil {
		conn.Close()
		_ = t.connector.Cleanup(config.LocalEndpoint)
		return fmt.Errorf("failed to upgrade %s socket: %w", t.connector.GetName(), err)
	}

	t.config = config
	t.conn = conn
	t.remote = remote

	Logger.Infof("Bound %s socket at %s, sending to %s", t.connector.GetName(), conn.LocalAddr(), remote)
	return nil
}

func (t *datagramTransport) Send(data []byte) error {
	t.mu.RLock()
	conn, remote := t.conn, t.remote
	t.mu.RUnlock()

	if conn == nil || t.closed.Load() {
		return transport.ErrClosed
	}

	if _, err := conn.WriteTo(data, remote); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return transport.ErrClosed
		}
		return err
	}
	return nil
}

func (t *datagramTransport) Receive(buf []byte) (int, error) {
	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()

	if conn == nil || t.closed.Load() {
		return 0, transport.ErrClosed
	}

	// Blocks until a datagram arrives or the socket is closed
	n, _, err := conn.ReadFrom(buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) || t.closed.Load() {
			return 0, transport.ErrClosed
		}
		return n, err
	}
	return n, nil
}

func (t *datagramTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	if cerr := t.connector.Cleanup(t.config.LocalEndpoint); cerr != nil {
		Logger.Warningf("Failed to clean up %s endpoint %s: %v", t.connector.GetName(), t.config.LocalEndpoint, cerr)
	}
	Logger.Infof("Closed %s socket at %s", t.connector.GetName(), t.config.LocalEndpoint)
	return err
}

func (t *datagramTransport) LocalAddr() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.conn == nil {
		return ""
	}
	return t.conn.LocalAddr().String()
}

func (t *datagramTransport) GetName() string {
	return t.connector.GetName()
}
