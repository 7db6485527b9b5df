package udp

import (
	"net"

	"github.com/ValentinKolb/rlink/link/common"
	"github.com/ValentinKolb/rlink/link/transport"
	"github.com/ValentinKolb/rlink/link/transport/base"
)

// connector implements the IConnector interface for UDP sockets
type connector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IConnector)
// --------------------------------------------------------------------------

func (c *connector) GetName() string {
	return "udp"
}

func (c *connector) Listen(endpoint string) (net.PacketConn, error) {
	return net.ListenPacket("udp", endpoint)
}

func (c *connector) Resolve(endpoint string) (net.Addr, error) {
	return net.ResolveUDPAddr("udp", endpoint)
}

// UpgradeConnection applies the socket buffer sizes of the TransportConfig
func (c *connector) UpgradeConnection(conn net.PacketConn, config common.TransportConfig) error {
	udpConn, ok := conn.(*net.UDPConn)
	if !ok {
		return nil // Not a UDP connection, nothing to upgrade
	}

	// Set socket write buffer size if configured
	if config.WriteBufferSize > 0 {
		if err := udpConn.SetWriteBuffer(config.WriteBufferSize); err != nil {
			return err
		}
	}

	// Set socket read buffer size if configured
	if config.ReadBufferSize > 0 {
		if err := udpConn.SetReadBuffer(config.ReadBufferSize); err != nil {
			return err
		}
	}

	return nil
}

func (c *connector) Cleanup(string) error {
	return nil
}

// --------------------------------------------------------------------------
// Transport Factory Method
// --------------------------------------------------------------------------

// NewUDPTransport creates a new UDP transport
func NewUDPTransport() transport.IDatagramTransport {
	return base.NewBaseTransport(&connector{})
}
