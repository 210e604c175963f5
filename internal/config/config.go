// Package config loads a node's static configuration from a TOML file,
// the convention used throughout the katzenpost-style configuration
// layers this module's ambient stack follows.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// PortConfig describes one physical link a node maintains.
type PortConfig struct {
	// Name labels the port in logs and in simulation mode identifies
	// the rendezvous link the two peer nodes share.
	Name string `toml:"name"`

	// Interface names the raw Ethernet interface to bind in live mode.
	// Empty in simulation mode.
	Interface string `toml:"interface,omitempty"`
}

// Config is a node's complete static configuration.
type Config struct {
	// Mode is "simulation" or "live".
	Mode string `toml:"mode"`

	// PollIntervalMillis is the Pollster's poll cadence.
	PollIntervalMillis int `toml:"poll_interval_millis"`

	// Ports lists the node's physical links in index order; index 0 is
	// the initial egress route.
	Ports []PortConfig `toml:"port"`

	// Logging controls the charmbracelet/log verbosity.
	Logging LoggingConfig `toml:"logging"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Load reads and validates a Config from the named TOML file.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case "simulation", "live":
	default:
		return fmt.Errorf("config: mode must be \"simulation\" or \"live\", got %q", c.Mode)
	}
	if len(c.Ports) == 0 {
		return fmt.Errorf("config: at least one [[port]] is required")
	}
	if c.PollIntervalMillis <= 0 {
		c.PollIntervalMillis = 500
	}
	for i, p := range c.Ports {
		if p.Name == "" {
			return fmt.Errorf("config: port %d missing name", i)
		}
		if c.Mode == "live" && p.Interface == "" {
			return fmt.Errorf("config: port %d (%s) requires interface in live mode", i, p.Name)
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	return nil
}
