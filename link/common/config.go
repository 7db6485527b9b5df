package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultProbeInterval = 3 * time.Second
	DefaultMaxProbes     = 5
	DefaultMaxFrameSize  = 64 * 1024 // 64 KB
	DefaultBufferSize    = 64 * 1024 // 64 KB, receive buffer of a connection

	// MaxDatagramSize is the largest UDP payload over IPv4 (65535 - 8 - 20).
	// No encoded frame may exceed it.
	MaxDatagramSize = 65507
)

// --------------------------------------------------------------------------
// Transport configuration struct
// --------------------------------------------------------------------------

// TransportConfig holds the parameters a datagram transport is opened with
type TransportConfig struct {
	// LocalEndpoint is bound for receiving (e.g. 0.0.0.0:11000 or /tmp/a.sock)
	LocalEndpoint string
	// RemoteEndpoint is the fixed peer every datagram is sent to
	RemoteEndpoint string

	// Socket buffer sizes in bytes, 0 keeps the OS default
	ReadBufferSize  int
	WriteBufferSize int
}

// --------------------------------------------------------------------------
// Connection configuration struct
// --------------------------------------------------------------------------

// ConnConfig holds all configuration parameters of a reliable connection.
type ConnConfig struct {
	// Name identifies the connection in logs and metrics
	Name string

	// Endpoints and socket settings
	Transport TransportConfig

	// Framing parameters, both peers must agree on these
	ProtocolTag  string
	Delimiter    byte
	MaxFrameSize int

	// Liveness parameters
	ProbeInterval time.Duration
	MaxProbes     int

	// CloseOnDisconnect stops the connection after the disconnect notification.
	// If false the socket stays open and the application decides.
	CloseOnDisconnect bool

	// Logging configuration
	LogLevel string
}

// DefaultConnConfig returns a configuration compatible with legacy peers
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		Name: "link",
		Transport: TransportConfig{
			ReadBufferSize:  0,
			WriteBufferSize: 0,
		},
		ProtocolTag:   DefaultProtocolTag,
		Delimiter:     DefaultDelimiter,
		MaxFrameSize:  DefaultMaxFrameSize,
		ProbeInterval: DefaultProbeInterval,
		MaxProbes:     DefaultMaxProbes,
		LogLevel:      "info",
	}
}

// Validate checks the configuration for values the protocol cannot run with
func (c *ConnConfig) Validate() error {
	if c.ProtocolTag == "" {
		return fmt.Errorf("protocol tag must not be empty")
	}
	if strings.IndexByte(c.ProtocolTag, c.Delimiter) >= 0 {
		return fmt.Errorf("protocol tag %q contains the delimiter %q", c.ProtocolTag, c.Delimiter)
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe interval must be positive, got %s", c.ProbeInterval)
	}
	if c.MaxProbes < 1 {
		return fmt.Errorf("max probes must be at least 1, got %d", c.MaxProbes)
	}
	if c.MaxFrameSize < 1 {
		return fmt.Errorf("max frame size must be at least 1, got %d", c.MaxFrameSize)
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ConnConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Connection")
	addField("Name", c.Name)
	addField("Local Endpoint", c.Transport.LocalEndpoint)
	addField("Remote Endpoint", c.Transport.RemoteEndpoint)

	addSection("Framing")
	addField("Protocol Tag", c.ProtocolTag)
	addField("Delimiter", strconv.QuoteRune(rune(c.Delimiter)))
	addField("Max Frame Size", fmt.Sprintf("%d bytes", c.MaxFrameSize))

	addSection("Liveness")
	addField("Probe Interval", c.ProbeInterval.String())
	addField("Max Probes", strconv.Itoa(c.MaxProbes))
	addField("Close On Disconnect", strconv.FormatBool(c.CloseOnDisconnect))

	addSection("Socket")
	addField("Read Buffer", bufferString(c.Transport.ReadBufferSize))
	addField("Write Buffer", bufferString(c.Transport.WriteBufferSize))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

func bufferString(size int) string {
	if size <= 0 {
		return "os default"
	}
	return fmt.Sprintf("%d bytes", size)
}
