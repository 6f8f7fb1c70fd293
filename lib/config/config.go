// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the mount configuration for archivist.
//
// Configuration comes from a single YAML file named by:
//   - the ARCHIVIST_CONFIG environment variable, or
//   - the --config flag passed to the mount command
//
// There is no automatic discovery. Command-line flags override values
// from the file, and a mount can be run from flags alone.
//
// String paths may reference the environment as ${VAR} or
// ${VAR:-default}.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "ARCHIVIST_CONFIG"

// Config is the archivist mount configuration.
type Config struct {
	// Mountpoint is the directory the filesystem is mounted on.
	Mountpoint string `yaml:"mountpoint"`

	// Replicas are the replica root directories. The first entry is
	// the authority replica; the order must never change for an
	// existing store.
	Replicas []string `yaml:"replicas"`

	// LogFile is the process log, truncated at mount time.
	LogFile string `yaml:"log_file"`

	// MaxOpenFiles bounds the number of concurrently open files.
	MaxOpenFiles int `yaml:"max_open_files"`

	// AllowOther lets users other than the mounting user access the
	// filesystem. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`

	// AllowRoot permits running the mount as root.
	AllowRoot bool `yaml:"allow_root"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogFile:      "archivist.log",
		MaxOpenFiles: 128,
	}
}

// Load loads configuration from the file named by ARCHIVIST_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your archivist.yaml config file, or use --config flag",
			EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path on top of [Default].
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.Mountpoint = expandVars(c.Mountpoint)
	c.LogFile = expandVars(c.LogFile)
	for i := range c.Replicas {
		c.Replicas[i] = expandVars(c.Replicas[i])
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns from the
// environment. An unset or empty variable takes the default.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Mountpoint == "" {
		errs = append(errs, errors.New("mountpoint is required"))
	}
	if len(c.Replicas) == 0 {
		errs = append(errs, errors.New("at least one replica is required"))
	}
	seen := make(map[string]bool, len(c.Replicas))
	for i, replica := range c.Replicas {
		if replica == "" {
			errs = append(errs, fmt.Errorf("replicas[%d] is empty", i))
			continue
		}
		if seen[replica] {
			errs = append(errs, fmt.Errorf("replicas[%d]: %s is listed more than once", i, replica))
		}
		seen[replica] = true
		if replica == c.Mountpoint {
			errs = append(errs, fmt.Errorf("replicas[%d]: replica root cannot be the mountpoint", i))
		}
	}
	if c.LogFile == "" {
		errs = append(errs, errors.New("log_file is required"))
	}
	if c.MaxOpenFiles <= 0 {
		errs = append(errs, fmt.Errorf("max_open_files must be positive, got %d", c.MaxOpenFiles))
	}
	return errors.Join(errs...)
}
