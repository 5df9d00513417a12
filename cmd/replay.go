package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/detsim/detsim/sim"
	"github.com/detsim/detsim/sim/workload"
)

// replayCmd re-runs a simulation from a recorded draw log.
var replayCmd = &cobra.Command{
	Use:   "replay DRAWLOG",
	Short: "Re-run a simulation from a recorded draw log",
	Long: "Feed a draw log captured with 'detsim run --record' back into the\n" +
		"simulation. With the same config the run is bit-identical to the one\n" +
		"that produced the log; the log may also be hand-edited to steer the run.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := loadConfig(cmd)

		data, err := os.ReadFile(args[0])
		if err != nil {
			logrus.Fatalf("Could not read draw log: %v", err)
		}
		logrus.Infof("Replaying %d draw-log bytes from %s", len(data), args[0])

		st, err := workload.Run(sim.NewReplayRandom(data), cfg)
		if err != nil {
			st.Print()
			logrus.Fatalf("Replay failed: %v", err)
		}
		st.Print()
		logrus.Info("Replay complete.")
	},
}

func init() {
	addConfigFlags(replayCmd)
	rootCmd.AddCommand(replayCmd)
}
