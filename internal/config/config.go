// Package config provides unified configuration loading for mcsolve.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/mcsolve/internal/prng"
	"github.com/nvandessel/mcsolve/internal/store"
	"github.com/nvandessel/mcsolve/internal/sweep"
	"gopkg.in/yaml.v3"
)

// FileName is the config file name inside the mcsolve home directory.
const FileName = "config.yaml"

// Config contains all mcsolve configuration settings.
type Config struct {
	// Generator holds the PRNG parameters every solve starts from.
	Generator prng.Params `json:"generator" yaml:"generator"`

	// Sweep is the default chain length × chain count grid.
	Sweep sweep.Grid `json:"sweep" yaml:"sweep"`

	// Store configures where completed sweep reports are kept.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// StoreConfig configures the run database.
type StoreConfig struct {
	// Path is the SQLite database file. Empty means ~/.mcsolve/runs.db.
	// Supports ${VAR} syntax for env vars.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures mcsolve's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to ~/.mcsolve/events.jsonl.
	// "trace" additionally logs every result vector.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the reference generator and the full grid.
func Default() *Config {
	return &Config{
		Generator: prng.DefaultParams(),
		Sweep:     sweep.DefaultGrid(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.mcsolve/config.yaml.
func DefaultPath() (string, error) {
	dir, err := store.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.mcsolve/config.yaml -> environment variables
func Load() (*Config, error) {
	configPath, err := DefaultPath()
	if err != nil {
		configPath = ""
	}
	return LoadFrom(configPath)
}

// LoadFrom is Load with an explicit config file. A missing file is not an
// error; an empty path skips the file.
func LoadFrom(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys absent
// from the file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Path = expandEnvVars(config.Store.Path)

	return config, nil
}

// Save writes the configuration as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator: %w", err)
	}

	if err := c.Sweep.Validate(); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// A malformed generator parameter is an error.
func applyEnvOverrides(config *Config) error {
	ints := []struct {
		name string
		dst  *int64
	}{
		{"MCSOLVE_MODULUS", &config.Generator.Modulus},
		{"MCSOLVE_SEED", &config.Generator.Seed},
		{"MCSOLVE_MULTIPLIER", &config.Generator.Multiplier},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", e.name, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("MCSOLVE_DB"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("MCSOLVE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
