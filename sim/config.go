package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config selects everything about a simulation run except the random source.
// Two runs with the same Config and the same draw sequence behave
// identically.
type Config struct {
	// Clients is the number of concurrent workload clients.
	Clients int `yaml:"clients"`
	// DurationSeconds is the virtual time after which the run stops.
	DurationSeconds float64 `yaml:"duration_seconds"`
	// ServiceSize is the element count of the swap service array.
	ServiceSize int `yaml:"service_size"`
	// MeanSwapIntervalSeconds is the Poisson mean between client operations.
	MeanSwapIntervalSeconds float64 `yaml:"mean_swap_interval_seconds"`
	// InvariantCheckOneIn makes one in this many client operations an
	// invariant check instead of a swap.
	InvariantCheckOneIn int `yaml:"invariant_check_one_in"`
	// Scheduling is "in-order" or "random-order".
	Scheduling string `yaml:"scheduling"`
	// Buggify enables randomized delay extensions and other fault-injection
	// sites. Applies under either scheduling strategy; record and replay
	// must agree on it.
	Buggify bool `yaml:"buggify"`
	// MaxConcurrentSwaps, when positive, caps in-flight swaps with an
	// admission lock. Zero means unlimited.
	MaxConcurrentSwaps int64 `yaml:"max_concurrent_swaps"`
	// SlowSwapWarnSeconds, when positive, reports swaps slower than this to
	// a timeout warning collector. Zero disables the collector.
	SlowSwapWarnSeconds float64 `yaml:"slow_swap_warn_seconds"`
	// Seed drives fair-source runs. Ignored by replay and fuzz entries.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig mirrors the canonical demo run: five clients hammering a
// thousand-element array for a hundred virtual seconds under random-order
// scheduling with buggification on.
func DefaultConfig() Config {
	return Config{
		Clients:                 5,
		DurationSeconds:         100.0,
		ServiceSize:             1000,
		MeanSwapIntervalSeconds: 1.0,
		InvariantCheckOneIn:     100,
		Scheduling:              "random-order",
		Buggify:                 true,
	}
}

// LoadConfig reads a YAML config file. Unknown fields are rejected so typos
// fail loudly instead of silently running the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the simulation cannot run.
func (c Config) Validate() error {
	if c.Clients <= 0 {
		return fmt.Errorf("clients must be positive, got %d", c.Clients)
	}
	if c.DurationSeconds <= 0 {
		return fmt.Errorf("duration_seconds must be positive, got %g", c.DurationSeconds)
	}
	if c.ServiceSize < 2 {
		return fmt.Errorf("service_size must be at least 2, got %d", c.ServiceSize)
	}
	if c.MeanSwapIntervalSeconds <= 0 {
		return fmt.Errorf("mean_swap_interval_seconds must be positive, got %g", c.MeanSwapIntervalSeconds)
	}
	if c.InvariantCheckOneIn < 1 {
		return fmt.Errorf("invariant_check_one_in must be at least 1, got %d", c.InvariantCheckOneIn)
	}
	if _, err := ParseSchedulingStrategy(c.Scheduling); err != nil {
		return err
	}
	if c.MaxConcurrentSwaps < 0 {
		return fmt.Errorf("max_concurrent_swaps must not be negative, got %d", c.MaxConcurrentSwaps)
	}
	if c.SlowSwapWarnSeconds < 0 {
		return fmt.Errorf("slow_swap_warn_seconds must not be negative, got %g", c.SlowSwapWarnSeconds)
	}
	return nil
}
