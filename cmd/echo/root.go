package echo

import (
	"context"
	"fmt"
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
	// EchoCmd represents the echo server command
	EchoCmd = &cobra.Command{
		Use:   "echo",
		Short: "Answer every received payload with the same payload",
		Long: `Start a reliable link that sends every received payload back to the remote peer,
optionally with a prefix. Useful as counterpart for 'rlink peer' and for testing.
The format of the environment variables is RLINK_<flag> (e.g. RLINK_ECHO_PREFIX=ok:)`,
		PersistentPreRunE: processConfig,
		RunE:              run,
	}
	echoConfig common.ConnConfig
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	defaults := common.DefaultConnConfig()
	defaults.Name = "echo"
	defaults.Transport.LocalEndpoint = "0.0.0.0:3000"
	defaults.Transport.RemoteEndpoint = "127.0.0.1:11000"
	util.SetupConnFlags(EchoCmd, defaults)

	key := "poll-interval"
	EchoCmd.PersistentFlags().Duration(key, 20*time.Millisecond, util.WrapString("How often received payloads are polled"))

	key = "echo-prefix"
	EchoCmd.PersistentFlags().String(key, "", util.WrapString("Prefix added to every echoed payload"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	echoConfig, err = util.GetConnConfig()
	if err != nil {
		return err
	}

	return common.InitLoggers(echoConfig.LogLevel)
}

func run(_ *cobra.Command, _ []string) error {
	c, err := util.NewConnection(echoConfig)
	if err != nil {
		return err
	}

	c.OnDisconnect(func() {
		util.Logger.Warningf("Peer %s stopped answering", echoConfig.Transport.RemoteEndpoint)
	})

	if err := c.Start(echoConfig.Transport.LocalEndpoint, echoConfig.Transport.RemoteEndpoint); err != nil {
		return err
	}
	defer c.Stop()

	util.StartMetricsEndpoint(viper.GetString("metrics-endpoint"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	prefix := viper.GetString("echo-prefix")
	ticker := time.NewTicker(viper.GetDuration("poll-interval"))
	defer ticker.Stop()

	util.Logger.Infof("Echoing payloads from %s", echoConfig.Transport.RemoteEndpoint)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "stopping (%s)\n", c.Stats())
			return nil

		case <-ticker.C:
			for _, payload := range c.Poll() {
				fmt.Println(payload)
				if err := c.Send(prefix + payload); err != nil {
					util.Logger.Warningf("Failed to echo %q: %v", payload, err)
				}
			}
		}
	}
}
