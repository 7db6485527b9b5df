package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/rlink/cmd/echo"
	"github.com/ValentinKolb/rlink/cmd/peer"
	"github.com/ValentinKolb/rlink/cmd/sim"
	"github.com/ValentinKolb/rlink/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "rlink",
		Short: "reliable messaging over lossy datagrams",
		Long: fmt.Sprintf(`rlink (v%s)

Ordered, de-duplicated and gap-repaired delivery of text payloads between
two peers over UDP or Unix datagram sockets, with keepalive probes and
disconnect detection.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of rlink",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rlink v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(peer.PeerCmd)
	RootCmd.AddCommand(echo.EchoCmd)
	RootCmd.AddCommand(sim.SimCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, text)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "udp", util.WrapString("transport to use (udp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
