// Package config provides configuration management for the sqgen CLI.
//
// This package extends the shared project configuration from
// internal/config with CLI-specific fields and the layered loading of
// defaults, config file, environment variables and flags.
package config

import (
	"fmt"
	"os"

	sharedcfg "github.com/leapstack-labs/sqgen/internal/config"
)

// ProjectConfig is an alias for the shared project configuration.
type ProjectConfig = sharedcfg.ProjectConfig

// Config holds all CLI configuration options.
type Config struct {
	sharedcfg.ProjectConfig `koanf:",squash"`

	Verbose bool `koanf:"verbose"`
}

// Default configuration values.
const (
	DefaultStateFile = sharedcfg.DefaultStateFile
	EnvPrefix        = "SQGEN_"
)

// Project returns the shared part of the configuration.
func (c *Config) Project() *ProjectConfig {
	return &c.ProjectConfig
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.SourceDir); os.IsNotExist(err) {
		return fmt.Errorf("source directory does not exist: %s\nHint: Create the directory or use --source-dir to specify a different path", c.SourceDir)
	}
	return nil
}
