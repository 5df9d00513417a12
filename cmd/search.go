package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/detsim/detsim/sim"
	"github.com/detsim/detsim/sim/workload"
)

var (
	searchStartSeed int64 // First seed to try
	searchMaxSeeds  int64 // Stop after this many seeds (0 = run until failure)
)

// searchCmd sweeps seeds until a run fails.
var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Sweep seeds until a simulation run fails",
	Long: "Run the simulation once per seed, starting from --start-seed, until a run\n" +
		"reports an invariant violation. The offending seed is printed so the run\n" +
		"can be reproduced exactly with 'detsim run --seed'.",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := loadConfig(cmd)

		tried := int64(0)
		for s := searchStartSeed; searchMaxSeeds == 0 || tried < searchMaxSeeds; s++ {
			cfg.Seed = s
			st, err := workload.Run(sim.NewFairRandom(s), cfg)
			if err != nil {
				st.Print()
				logrus.Fatalf("Seed %d failed after %d clean seeds: %v", s, tried, err)
			}
			logrus.Infof("Seed %d clean: %d swaps, %d invariant checks, %d tasks",
				s, st.Swaps, st.InvariantChecks, st.TasksFired)
			tried++
		}
		logrus.Infof("No failure in %d seeds starting at %d", tried, searchStartSeed)
	},
}

func init() {
	addConfigFlags(searchCmd)
	searchCmd.Flags().Int64Var(&searchStartSeed, "start-seed", 0, "First seed to try")
	searchCmd.Flags().Int64Var(&searchMaxSeeds, "max-seeds", 0, "Give up after this many seeds (0 = run until failure)")

	rootCmd.AddCommand(searchCmd)
}
