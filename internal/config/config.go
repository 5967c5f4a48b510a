// Package config loads the project configuration from curifactory.yaml in
// the working directory. Every field has a sensible default; a missing
// config file is not an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked for in the working directory.
const DefaultPath = "curifactory.yaml"

// Config is the project layout and run defaults.
type Config struct {
	// ExperimentName is the default experiment name when the CLI is not
	// given one explicitly.
	ExperimentName string `yaml:"experiment_name,omitempty"`

	// CacheDir holds per-stage cache entries.
	CacheDir string `yaml:"cache_dir"`

	// RegistryPath is the SQLite database recording runs and parameter
	// sets.
	RegistryPath string `yaml:"registry_path"`

	// ParamsDir holds CUE parameter files, referenced by bare name from
	// the CLI.
	ParamsDir string `yaml:"params_dir"`

	// LogsDir receives per-run log files.
	LogsDir string `yaml:"logs_dir"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		CacheDir:     "data/cache",
		RegistryPath: "data/registry.db",
		ParamsDir:    "params",
		LogsDir:      "logs",
	}
}

// Load reads the config file at path, filling unset fields from Default.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.fillDefaults(), nil
}

func (c Config) fillDefaults() Config {
	defaults := Default()
	if c.CacheDir == "" {
		c.CacheDir = defaults.CacheDir
	}
	if c.RegistryPath == "" {
		c.RegistryPath = defaults.RegistryPath
	}
	if c.ParamsDir == "" {
		c.ParamsDir = defaults.ParamsDir
	}
	if c.LogsDir == "" {
		c.LogsDir = defaults.LogsDir
	}
	return c
}
