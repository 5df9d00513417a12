package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/detsim/detsim/sim"
	"github.com/detsim/detsim/sim/workload"
)

var (
	// Shared CLI flags
	configPath string  // Optional YAML config file
	logLevel   string  // Log verbosity level
	seed       int64   // Seed for the fair random source
	scheduling string  // Scheduling strategy override
	buggify    bool    // Buggified delays override
	clients    int     // Client count override
	duration   float64 // Virtual run duration override (seconds)

	// run-only flags
	recordPath string // Write the draw log here after the run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "detsim",
	Short: "Deterministic simulation of a concurrent swap service",
	Long: "detsim runs a toy swap service on a deterministic cooperative-concurrency\n" +
		"substrate: virtual time, explicit suspension points, and every random\n" +
		"decision drawn from one replayable source.",
}

// setupLogging applies the --log flag.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadConfig builds the effective config: defaults, then the YAML file if
// given, then explicit flag overrides.
func loadConfig(cmd *cobra.Command) sim.Config {
	cfg := sim.DefaultConfig()
	if configPath != "" {
		loaded, err := sim.LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Could not load config: %v", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("scheduling") {
		cfg.Scheduling = scheduling
	}
	if cmd.Flags().Changed("buggify") {
		cfg.Buggify = buggify
	}
	if cmd.Flags().Changed("clients") {
		cfg.Clients = clients
	}
	if cmd.Flags().Changed("duration") {
		cfg.DurationSeconds = duration
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

// addConfigFlags attaches the shared config flags to a subcommand.
func addConfigFlags(c *cobra.Command) {
	c.Flags().StringVar(&configPath, "config", "", "YAML config file")
	c.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	c.Flags().Int64Var(&seed, "seed", 0, "Seed for the fair random source")
	c.Flags().StringVar(&scheduling, "scheduling", "random-order", "Scheduling strategy (in-order, random-order)")
	c.Flags().BoolVar(&buggify, "buggify", true, "Enable buggified delay extensions")
	c.Flags().IntVar(&clients, "clients", 5, "Number of concurrent clients")
	c.Flags().Float64Var(&duration, "duration", 100.0, "Virtual run duration in seconds")
}

// runCmd executes one simulation with a fixed seed.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation with a fixed seed",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg := loadConfig(cmd)

		var src sim.RandomSource = sim.NewFairRandom(cfg.Seed)
		var rec *sim.RecordingRandom
		if recordPath != "" {
			rec = sim.NewRecordingRandom(src)
			src = rec
		}

		logrus.Infof("Starting simulation: seed=%d scheduling=%s buggify=%v clients=%d duration=%.1fs",
			cfg.Seed, cfg.Scheduling, cfg.Buggify, cfg.Clients, cfg.DurationSeconds)
		st, err := workload.Run(src, cfg)
		if err != nil {
			logrus.Fatalf("Simulation failed (seed %d): %v", cfg.Seed, err)
		}
		if rec != nil {
			if werr := os.WriteFile(recordPath, rec.Bytes(), 0o644); werr != nil {
				logrus.Fatalf("Could not write draw log: %v", werr)
			}
			logrus.Infof("Wrote %d draw-log bytes to %s", len(rec.Bytes()), recordPath)
		}
		st.Print()
		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	addConfigFlags(runCmd)
	runCmd.Flags().StringVar(&recordPath, "record", "", "Record the draw log to this file")
	rootCmd.AddCommand(runCmd)
}
