package util

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ValentinKolb/rlink/link/common"
	"github.com/ValentinKolb/rlink/link/conn"
	"github.com/ValentinKolb/rlink/link/serializer"
	"github.com/ValentinKolb/rlink/link/transport"
	"github.com/ValentinKolb/rlink/link/transport/udp"
	"github.com/ValentinKolb/rlink/link/transport/unix"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger(common.LoggerCmd)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupConnFlags adds the connection flags to a command, defaults are taken from defaults
func SetupConnFlags(cmd *cobra.Command, defaults common.ConnConfig) {
	key := "name"
	cmd.PersistentFlags().String(key, defaults.Name, WrapString("Name of the connection in logs and metrics"))

	key = "local"
	cmd.PersistentFlags().String(key, defaults.Transport.LocalEndpoint, WrapString("Local endpoint to bind (e.g. 0.0.0.0:11000 for udp or /tmp/a.sock for unix)"))

	key = "remote"
	cmd.PersistentFlags().String(key, defaults.Transport.RemoteEndpoint, WrapString("Remote endpoint every frame is sent to (e.g. 127.0.0.1:3000 for udp or /tmp/b.sock for unix)"))

	key = "protocol-tag"
	cmd.PersistentFlags().String(key, defaults.ProtocolTag, WrapString("Magic tag carried by every frame, both peers must use the same"))

	key = "delimiter"
	cmd.PersistentFlags().String(key, string(defaults.Delimiter), WrapString("Single byte separating frames in the stream, payloads must not contain it"))

	key = "max-frame-size"
	cmd.PersistentFlags().Int(key, defaults.MaxFrameSize/1024, WrapString("Max size of a frame (in KB), larger unterminated data is dropped"))

	key = "probe-interval"
	cmd.PersistentFlags().Duration(key, defaults.ProbeInterval, WrapString("Silence after which a timeout probe is sent"))

	key = "max-probes"
	cmd.PersistentFlags().Int(key, defaults.MaxProbes, WrapString("Unanswered probes after which the peer is declared disconnected"))

	key = "close-on-disconnect"
	cmd.PersistentFlags().Bool(key, defaults.CloseOnDisconnect, WrapString("Close the socket when the peer is declared disconnected"))

	key = "read-buffer"
	cmd.PersistentFlags().Int(key, defaults.Transport.ReadBufferSize/1024, WrapString("Socket read buffer (in KB, 0 keeps the OS default)"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, defaults.Transport.WriteBufferSize/1024, WrapString("Socket write buffer (in KB, 0 keeps the OS default)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, defaults.LogLevel, WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "metrics-endpoint"
	cmd.PersistentFlags().String(key, "", WrapString("Address to serve Prometheus metrics on (e.g. :9100), empty disables the endpoint"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("rlink")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetConnConfig reads the connection configuration from viper
func GetConnConfig() (common.ConnConfig, error) {
	delimiter := viper.GetString("delimiter")
	if len(delimiter) != 1 {
		return common.ConnConfig{}, fmt.Errorf("delimiter must be a single byte, got %q", delimiter)
	}

	conf := common.ConnConfig{
		Name: viper.GetString("name"),
		Transport: common.TransportConfig{
			LocalEndpoint:   viper.GetString("local"),
			RemoteEndpoint:  viper.GetString("remote"),
			ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
			WriteBufferSize: viper.GetInt("write-buffer") * 1024,
		},
		ProtocolTag:       viper.GetString("protocol-tag"),
		Delimiter:         delimiter[0],
		MaxFrameSize:      viper.GetInt("max-frame-size") * 1024,
		ProbeInterval:     viper.GetDuration("probe-interval"),
		MaxProbes:         viper.GetInt("max-probes"),
		CloseOnDisconnect: viper.GetBool("close-on-disconnect"),
		LogLevel:          viper.GetString("log-level"),
	}

	if err := conf.Validate(); err != nil {
		return common.ConnConfig{}, err
	}
	return conf, nil
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IFrameSerializer, error) {
	return serializer.New(viper.GetString("serializer"))
}

// GetTransport creates transport based on configuration
func GetTransport() (transport.IDatagramTransport, error) {
	switch viper.GetString("transport") {
	case "udp":
		return udp.NewUDPTransport(), nil
	case "unix":
		return unix.NewUnixTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// NewConnection builds a connection from the configured serializer and transport
func NewConnection(config common.ConnConfig) (*conn.Connection, error) {
	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}

	t, err := GetTransport()
	if err != nil {
		return nil, err
	}

	return conn.NewConnection(config, t, s)
}

// StartMetricsEndpoint serves the connection metrics on addr in the background.
// An empty addr disables the endpoint.
func StartMetricsEndpoint(addr string) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		conn.WriteMetrics(w)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		Logger.Infof("Serving metrics on %s/metrics", addr)
		if err := server.ListenAndServe(); err != nil {
			Logger.Errorf("Metrics endpoint stopped: %v", err)
		}
	}()
}
