package peer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValentinKolb/rlink/cmd/util"
	"github.com/ValentinKolb/rlink/link/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// PeerCmd represents the interactive peer command
	PeerCmd = &cobra.Command{
		Use:   "peer",
		Short: "Exchange lines with a remote peer over the reliable link",
		Long: `Start a reliable link to a remote peer. Every line read from stdin is sent as one payload,
received payloads are written to stdout in order. The configuration can be set via command line flags
or environment variables. The format of the environment variables is RLINK_<flag> (e.g. RLINK_PROBE_INTERVAL=5s)`,
		PersistentPreRunE: processConfig,
		RunE:              run,
	}
	peerConfig common.ConnConfig
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	defaults := common.DefaultConnConfig()
	defaults.Name = "peer"
	defaults.Transport.LocalEndpoint = "0.0.0.0:11000"
	defaults.Transport.RemoteEndpoint = "127.0.0.1:3000"
	util.SetupConnFlags(PeerCmd, defaults)

	key := "poll-interval"
	PeerCmd.PersistentFlags().Duration(key, 100*time.Millisecond, util.WrapString("How often received payloads are polled and printed"))

	key = "exit-on-disconnect"
	PeerCmd.PersistentFlags().Bool(key, false, util.WrapString("Exit when the remote peer is declared disconnected"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	peerConfig, err = util.GetConnConfig()
	if err != nil {
		return err
	}

	return common.InitLoggers(peerConfig.LogLevel)
}

func run(_ *cobra.Command, _ []string) error {
	c, err := util.NewConnection(peerConfig)
	if err != nil {
		return err
	}

	disconnected := make(chan struct{})
	c.OnDisconnect(func() {
		close(disconnected)
	})

	if err := c.Start(peerConfig.Transport.LocalEndpoint, peerConfig.Transport.RemoteEndpoint); err != nil {
		return err
	}
	defer c.Stop()

	util.StartMetricsEndpoint(viper.GetString("metrics-endpoint"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// read stdin on its own goroutine, the channel is closed on EOF
	lines := make(chan string)
	go func() {
		defer close(lines)
		if err := readLines(os.Stdin, peerConfig.MaxFrameSize, lines); err != nil {
			util.Logger.Errorf("Reading stdin stopped: %v", err)
		}
	}()

	ticker := time.NewTicker(viper.GetDuration("poll-interval"))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "stopping (%s)\n", c.Stats())
			return nil

		case line, ok := <-lines:
			if !ok {
				// stdin closed, keep receiving until interrupted
				lines = nil
				continue
			}
			if line == "" {
				continue
			}
			if err := c.Send(line); err != nil {
				fmt.Fprintf(os.Stderr, "not sent: %v\n", err)
			}

		case <-ticker.C:
			for _, payload := range c.Poll() {
				fmt.Println(payload)
			}

		case <-disconnected:
			fmt.Fprintf(os.Stderr, "peer %s stopped answering\n", peerConfig.Transport.RemoteEndpoint)
			if viper.GetBool("exit-on-disconnect") {
				return fmt.Errorf("peer disconnected")
			}
			disconnected = nil
		}
	}
}

// readLines sends every line of r to lines. Lines up to maxLine bytes are
// accepted, longer lines stop reading with bufio.ErrTooLong.
func readLines(r io.Reader, maxLine int, lines chan<- string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(maxLine+1, bufio.MaxScanTokenSize)), maxLine+1)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	return scanner.Err()
}
