package sim

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ValentinKolb/rlink/cmd/util"
	"github.com/ValentinKolb/rlink/link/common"
	"github.com/ValentinKolb/rlink/link/conn"
	"github.com/ValentinKolb/rlink/link/transport/mem"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// SimCmd represents the simulation command
	SimCmd = &cobra.Command{
		Use:   "sim",
		Short: "Simulate the reliable link over a lossy in-memory network",
		Long: `Run two connected peers in one process over an in-memory network that loses, duplicates
and reorders datagrams. Peer A sends numbered payloads, peer B echoes them. The run succeeds when
both directions delivered every payload exactly once and in order.`,
		PersistentPreRunE: processConfig,
		RunE:              run,
	}
	simConfig  common.ConnConfig
	simNetwork mem.NetworkConfig
	simCount   = 100
	simTimeout = time.Minute
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	defaults := common.DefaultConnConfig()
	defaults.Name = "sim"
	defaults.ProbeInterval = 100 * time.Millisecond
	defaults.LogLevel = "warn"
	util.SetupConnFlags(SimCmd, defaults)

	key := "count"
	SimCmd.PersistentFlags().Int(key, simCount, util.WrapString("Number of payloads peer A sends"))
	key = "loss"
	SimCmd.PersistentFlags().Float64(key, 0.1, util.WrapString("Probability that a datagram is lost"))
	key = "duplicate"
	SimCmd.PersistentFlags().Float64(key, 0.05, util.WrapString("Probability that a datagram is delivered twice"))
	key = "reorder"
	SimCmd.PersistentFlags().Float64(key, 0.1, util.WrapString("Probability that a datagram is held back behind the next one"))
	key = "seed"
	SimCmd.PersistentFlags().Int64(key, 0, util.WrapString("Seed of the network faults (0 picks a random seed)"))
	key = "timeout"
	SimCmd.PersistentFlags().Duration(key, simTimeout, util.WrapString("Give up if the payloads are not delivered within this time"))
	key = "csv"
	SimCmd.Flags().String(key, "", util.WrapString("Optional path to save the simulation result as CSV"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	simConfig, err = util.GetConnConfig()
	if err != nil {
		return err
	}

	simCount = viper.GetInt("count")
	simTimeout = viper.GetDuration("timeout")
	simNetwork = mem.NetworkConfig{
		LossRate:      viper.GetFloat64("loss"),
		DuplicateRate: viper.GetFloat64("duplicate"),
		ReorderRate:   viper.GetFloat64("reorder"),
		Seed:          viper.GetInt64("seed"),
	}

	if simCount < 1 {
		return fmt.Errorf("count must be at least 1, got %d", simCount)
	}
	return common.InitLoggers(simConfig.LogLevel)
}

// result is the outcome of one simulation run
type result struct {
	Elapsed   time.Duration
	Delivered int
	Echoed    int
	OK        bool
	StatsA    conn.Stats
	StatsB    conn.Stats
	Datagrams uint64
	Dropped   uint64
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Reliable link simulation")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(simConfig.String())
	fmt.Printf("Payloads: %d, loss %.2f, duplicate %.2f, reorder %.2f\n\n",
		simCount, simNetwork.LossRate, simNetwork.DuplicateRate, simNetwork.ReorderRate)

	util.StartMetricsEndpoint(viper.GetString("metrics-endpoint"))

	res, err := simulate()
	if err != nil {
		return err
	}

	printResult(res)

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting result to CSV: %s\n", csvPath)
		if err := writeResultToCSV(csvPath, res); err != nil {
			return fmt.Errorf("failed to export result to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	if !res.OK {
		return fmt.Errorf("payloads were not delivered within %s", simTimeout)
	}
	return nil
}

// simulate runs peer A against the echoing peer B and verifies the order on both sides
func simulate() (result, error) {
	network := mem.NewNetwork(simNetwork)

	// serializers are stateless, both peers share one
	s, err := util.GetSerializer()
	if err != nil {
		return result{}, err
	}

	configA, configB := simConfig, simConfig
	configA.Name, configB.Name = simConfig.Name+"-a", simConfig.Name+"-b"

	a, err := conn.NewConnection(configA, network.NewTransport(), s)
	if err != nil {
		return result{}, err
	}
	b, err := conn.NewConnection(configB, network.NewTransport(), s)
	if err != nil {
		return result{}, err
	}

	if err := a.Start("a", "b"); err != nil {
		return result{}, err
	}
	defer a.Stop()
	if err := b.Start("b", "a"); err != nil {
		return result{}, err
	}
	defer b.Stop()

	start := time.Now()
	for i := 0; i < simCount; i++ {
		if err := a.Send(payload(i)); err != nil {
			return result{}, err
		}
	}

	var res result
	deadline := time.After(simTimeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for res.Echoed < simCount {
		select {
		case <-deadline:
			return finish(res, start, a, b, network), nil

		case <-ticker.C:
			for _, p := range b.Poll() {
				if p != payload(res.Delivered) {
					return result{}, fmt.Errorf("peer B: expected %q at position %d, got %q", payload(res.Delivered), res.Delivered, p)
				}
				res.Delivered++
				if err := b.Send(p); err != nil {
					return result{}, err
				}
			}

			for _, p := range a.Poll() {
				if p != payload(res.Echoed) {
					return result{}, fmt.Errorf("peer A: expected echo %q at position %d, got %q", payload(res.Echoed), res.Echoed, p)
				}
				res.Echoed++
			}
		}
	}

	res.OK = true
	return finish(res, start, a, b, network), nil
}

func finish(res result, start time.Time, a, b *conn.Connection, network *mem.Network) result {
	res.Elapsed = time.Since(start)
	res.StatsA = a.Stats()
	res.StatsB = b.Stats()
	res.Datagrams, res.Dropped = network.Stats()
	return res
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func payload(i int) string {
	return fmt.Sprintf("payload-%d", i)
}

// printResult prints the result of a simulation in a formatted way
func printResult(res result) {
	status := "ok"
	if !res.OK {
		status = "TIMEOUT"
	}

	fmt.Printf("%-12s%s\n", "Status", status)
	fmt.Printf("%-12s%s\n", "Elapsed", res.Elapsed)
	fmt.Printf("%-12s%d/%d delivered, %d/%d echoed\n", "Payloads", res.Delivered, simCount, res.Echoed, simCount)
	fmt.Printf("%-12s%d delivered, %d dropped\n", "Network", res.Datagrams, res.Dropped)
	fmt.Printf("%-12s%s\n", "Peer A", res.StatsA)
	fmt.Printf("%-12s%s\n", "Peer B", res.StatsB)
}

// writeResultToCSV writes the simulation result to a CSV file
func writeResultToCSV(csvPath string, res result) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"OK", "ElapsedMs", "Payloads", "Delivered", "Echoed",
		"Loss", "Duplicate", "Reorder", "Seed",
		"ProbeIntervalMs", "MaxProbes", "Serializer",
		"NetworkDelivered", "NetworkDropped",
		"SentA", "ResentA", "ResendRequestsA", "ProbesA",
		"SentB", "ResentB", "ResendRequestsB", "ProbesB",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	row := []string{
		strconv.FormatBool(res.OK),
		strconv.FormatInt(res.Elapsed.Milliseconds(), 10),
		strconv.Itoa(simCount),
		strconv.Itoa(res.Delivered),
		strconv.Itoa(res.Echoed),
		strconv.FormatFloat(simNetwork.LossRate, 'f', 3, 64),
		strconv.FormatFloat(simNetwork.DuplicateRate, 'f', 3, 64),
		strconv.FormatFloat(simNetwork.ReorderRate, 'f', 3, 64),
		strconv.FormatInt(simNetwork.Seed, 10),
		strconv.FormatInt(simConfig.ProbeInterval.Milliseconds(), 10),
		strconv.Itoa(simConfig.MaxProbes),
		viper.GetString("serializer"),
		strconv.FormatUint(res.Datagrams, 10),
		strconv.FormatUint(res.Dropped, 10),
		strconv.FormatInt(res.StatsA.FramesSent, 10),
		strconv.FormatInt(res.StatsA.FramesResent, 10),
		strconv.FormatInt(res.StatsA.ResendRequests, 10),
		strconv.FormatInt(res.StatsA.ProbesSent, 10),
		strconv.FormatInt(res.StatsB.FramesSent, 10),
		strconv.FormatInt(res.StatsB.FramesResent, 10),
		strconv.FormatInt(res.StatsB.ResendRequests, 10),
		strconv.FormatInt(res.StatsB.ProbesSent, 10),
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("failed to write CSV row: %v", err)
	}

	return nil
}
