// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the bench daemon's configuration.
//
// Configuration comes from a single YAML file passed with --config.
// There are no fallbacks or automatic discovery: deterministic,
// auditable configuration with no hidden overrides.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/bench/lib/agent"
	"github.com/bureau-foundation/bench/lib/lease"
)

// DefaultSocketPath is where the daemon listens when the config file
// does not name a socket.
const DefaultSocketPath = "/run/bench/bench.sock"

// Duration is a time.Duration that unmarshals from YAML strings like
// "5m" or "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// DriverConfig selects and parameterizes one hardware driver.
type DriverConfig struct {
	// Variant names a registered driver implementation.
	Variant string `yaml:"variant"`

	// Options are passed to the driver's Configure.
	Options map[string]string `yaml:"options,omitempty"`
}

// USBConfig is one USB power switch entry. Port numbering follows the
// order of entries, starting at 1.
type USBConfig struct {
	DriverConfig `yaml:",inline"`

	// Class tags the port for class-based addressing.
	Class string `yaml:"class,omitempty"`
}

// Config is the bench daemon's configuration.
type Config struct {
	// SocketPath is the unix socket the control server listens on.
	SocketPath string `yaml:"socket_path"`

	// LeaseTimeout is the sliding session-lease expiry.
	LeaseTimeout Duration `yaml:"lease_timeout,omitempty"`

	// FeedbackInterval bounds one streaming write call before it
	// yields a progress report to the client.
	FeedbackInterval Duration `yaml:"feedback_interval,omitempty"`

	// Drivers. Any of these may be absent; the corresponding
	// subsystem then reports its unavailable sentinel.
	Power   *DriverConfig `yaml:"power,omitempty"`
	SDMux   *DriverConfig `yaml:"sdmux,omitempty"`
	Console *DriverConfig `yaml:"console,omitempty"`
	USB     []USBConfig   `yaml:"usb,omitempty"`
}

// Default returns the built-in configuration: local socket, default
// lease and feedback timing, no drivers.
func Default() *Config {
	return &Config{
		SocketPath:       DefaultSocketPath,
		LeaseTimeout:     Duration(lease.DefaultTimeout),
		FeedbackInterval: Duration(agent.DefaultFeedbackInterval),
	}
}

// Load reads and validates the configuration file at path. Values
// absent from the file keep their Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket_path must not be empty")
	}
	if c.LeaseTimeout < 0 {
		return fmt.Errorf("lease_timeout must not be negative")
	}
	if c.FeedbackInterval < 0 {
		return fmt.Errorf("feedback_interval must not be negative")
	}
	for _, entry := range []struct {
		name   string
		driver *DriverConfig
	}{
		{"power", c.Power},
		{"sdmux", c.SDMux},
		{"console", c.Console},
	} {
		if entry.driver != nil && entry.driver.Variant == "" {
			return fmt.Errorf("%s: variant must not be empty", entry.name)
		}
	}
	for i, port := range c.USB {
		if port.Variant == "" {
			return fmt.Errorf("usb[%d]: variant must not be empty", i)
		}
	}
	return nil
}
