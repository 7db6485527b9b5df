package unix

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"github.com/ValentinKolb/rlink/link/common"
	"github.com/ValentinKolb/rlink/link/transport"
	"github.com/ValentinKolb/rlink/link/transport/base"
)

// connector implements the IConnector interface for Unix datagram sockets
type connector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IConnector)
// --------------------------------------------------------------------------

func (c *connector) GetName() string {
	return "unixgram"
}

func (c *connector) Listen(endpoint string) (net.PacketConn, error) {
	// A socket file somebody still reads from is in use
	if probe, err := net.Dial("unixgram", endpoint); err == nil {
		probe.Close()
		return nil, fmt.Errorf("address %s already in use", endpoint)
	}

	// Remove stale socket file if it exists
	if err := os.RemoveAll(endpoint); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %v", err)
	}

	return net.ListenPacket("unixgram", endpoint)
}

func (c *connector) Resolve(endpoint string) (net.Addr, error) {
	return net.ResolveUnixAddr("unixgram", endpoint)
}

// UpgradeConnection applies the socket buffer sizes of the TransportConfig
func (c *connector) UpgradeConnection(conn net.PacketConn, config common.TransportConfig) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}

	if config.WriteBufferSize > 0 {
		if err := unixConn.SetWriteBuffer(config.WriteBufferSize); err != nil {
			return err
		}
	}

	if config.ReadBufferSize > 0 {
		if err := unixConn.SetReadBuffer(config.ReadBufferSize); err != nil {
			return err
		}
	}

	return nil
}

// Cleanup removes the socket file, datagram sockets are not unlinked on close
func (c *connector) Cleanup(endpoint string) error {
	if err := os.Remove(endpoint); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixTransport creates a new Unix datagram socket transport
func NewUnixTransport() transport.IDatagramTransport {
	return base.NewBaseTransport(&connector{})
}
