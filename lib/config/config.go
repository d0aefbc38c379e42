// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable [Load] reads the config path from.
const EnvironmentVariable = "VAGSEARCH_CONFIG"

// Policy names accepted by search.policy.
const (
	PolicyContainment = "containment"
	PolicyDistance    = "distance"
)

// Compression names accepted by search.journal_compression.
var compressionNames = []string{"", "none", "zstd", "lz4"}

// Config is the master configuration struct.
type Config struct {
	// Peer configures the connection to SPT's IPC server.
	Peer PeerConfig `yaml:"peer"`

	// Console configures the console log mirror.
	Console ConsoleConfig `yaml:"console"`

	// Search configures the boundary search.
	Search SearchConfig `yaml:"search"`

	// Debug lowers the log level to debug.
	Debug bool `yaml:"debug"`
}

// PeerConfig configures the IPC endpoint.
type PeerConfig struct {
	// Address is host:port of the IPC server.
	Address string `yaml:"address"`

	// DialTimeout is a Go duration string, e.g. "2s".
	DialTimeout string `yaml:"dial_timeout"`
}

// ConsoleConfig configures console log reading.
type ConsoleConfig struct {
	// LogFile is the con_logfile name relative to the game directory.
	// Empty disables console reading.
	LogFile string `yaml:"log_file"`
}

// SearchConfig configures the boundary search.
type SearchConfig struct {
	// Policy is the probe classification policy: containment or distance.
	Policy string `yaml:"policy"`

	// Journal is a path to record probes to. Empty disables recording.
	Journal string `yaml:"journal"`

	// JournalCompression is none, zstd or lz4.
	JournalCompression string `yaml:"journal_compression"`
}

// Default returns a Config that works against a stock SPT install.
func Default() *Config {
	return &Config{
		Peer: PeerConfig{
			Address:     "127.0.0.1:27182",
			DialTimeout: "2s",
		},
		Console: ConsoleConfig{
			LogFile: "conlog",
		},
		Search: SearchConfig{
			Policy:             PolicyContainment,
			JournalCompression: "zstd",
		},
	}
}

// Load loads configuration from the VAGSEARCH_CONFIG environment variable.
// When the variable is unset it returns [Default].
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merged over
// [Default].
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()

	return cfg, nil
}

// DialTimeout returns the parsed peer.dial_timeout. An empty value is zero.
func (c *Config) DialTimeout() (time.Duration, error) {
	if c.Peer.DialTimeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.Peer.DialTimeout)
	if err != nil {
		return 0, fmt.Errorf("peer.dial_timeout: %w", err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("peer.dial_timeout must not be negative, got %s", c.Peer.DialTimeout)
	}
	return timeout, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	c.Console.LogFile = expandVars(c.Console.LogFile)
	c.Search.Journal = expandVars(c.Search.Journal)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Peer.Address == "" {
		errs = append(errs, fmt.Errorf("peer.address is required"))
	}

	if _, err := c.DialTimeout(); err != nil {
		errs = append(errs, err)
	}

	switch c.Search.Policy {
	case PolicyContainment:
		if c.Console.LogFile == "" {
			errs = append(errs, fmt.Errorf("search.policy %s requires console.log_file", PolicyContainment))
		}
	case PolicyDistance:
	default:
		errs = append(errs, fmt.Errorf("search.policy must be one of: %v, got %q",
			[]string{PolicyContainment, PolicyDistance}, c.Search.Policy))
	}

	if !slices.Contains(compressionNames, c.Search.JournalCompression) {
		errs = append(errs, fmt.Errorf("search.journal_compression must be one of: %v", compressionNames[1:]))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
