// Package config loads the master's YAML configuration file: packing and
// profiling cadence, autoscaling tunables, and the descriptor set bins are
// balanced over.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of the master's configuration file.
type Config struct {
	Listen              string        `yaml:"listen"`
	PackingInterval     time.Duration `yaml:"packingInterval"`
	ProfilingInterval   time.Duration `yaml:"profilingInterval"`
	DefaultCPUShare     float64       `yaml:"defaultCPUShare"`
	SizeDescriptors     []string      `yaml:"sizeDescriptors"`
	DisableSafetyMargin bool          `yaml:"disableSafetyMargin"`
	DispatcherCount     int           `yaml:"dispatcherCount"`

	Autoscaling      bool          `yaml:"autoscaling"`
	StepLength       time.Duration `yaml:"stepLength"`
	RocLower         float64       `yaml:"rocLower"`
	RocUpper         float64       `yaml:"rocUpper"`
	RocMinimum       float64       `yaml:"rocMinimum"`
	QueueLengthLimit int           `yaml:"queueLengthLimit"`
	WaitTime         time.Duration `yaml:"waitTime"`
	LargeIncrement   int           `yaml:"largeIncrement"`
	SmallIncrement   int           `yaml:"smallIncrement"`

	LogLevel string `yaml:"logLevel"`
	LogJSON  bool   `yaml:"logJSON"`
}

// Default returns the configuration used when no file is supplied, matching
// the defaults the individual packages fall back to on their own.
func Default() Config {
	return Config{
		Listen:            ":8090",
		PackingInterval:   10 * time.Second,
		ProfilingInterval: 30 * time.Second,
		DefaultCPUShare:   0.1,
		SizeDescriptors:   []string{"avg_cpu", "avg_memory", "avg_network"},
		DispatcherCount:   4,

		Autoscaling:      true,
		StepLength:        15 * time.Second,
		RocLower:         1,
		RocUpper:         5,
		RocMinimum:       0.5,
		QueueLengthLimit: 20,
		WaitTime:         2 * time.Minute,
		LargeIncrement:   3,
		SmallIncrement:   1,

		LogLevel: "info",
	}
}

// Load reads and parses a YAML configuration file, filling in Default()
// values for anything the file omits.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would make the allocator or
// predictor behave nonsensically.
func (c Config) Validate() error {
	if c.PackingInterval <= 0 {
		return fmt.Errorf("packingInterval must be positive")
	}
	if c.ProfilingInterval <= 0 {
		return fmt.Errorf("profilingInterval must be positive")
	}
	if len(c.SizeDescriptors) == 0 {
		return fmt.Errorf("sizeDescriptors must not be empty")
	}
	if c.DispatcherCount <= 0 {
		return fmt.Errorf("dispatcherCount must be positive")
	}
	if c.Autoscaling {
		if c.StepLength <= 0 {
			return fmt.Errorf("stepLength must be positive when autoscaling is enabled")
		}
		if c.RocUpper <= c.RocLower {
			return fmt.Errorf("rocUpper must be greater than rocLower")
		}
		if c.LargeIncrement <= 0 || c.SmallIncrement <= 0 {
			return fmt.Errorf("largeIncrement and smallIncrement must be positive")
		}
	}
	return nil
}
