// Package config loads strand.json, the optional project configuration
// consumed by the strand CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "strand.json"

	// DefaultInspectAddr is the default inspect server listen address.
	DefaultInspectAddr = "localhost:7071"

	// DefaultMetricsNamespace is the default Prometheus namespace.
	DefaultMetricsNamespace = "strand"
)

// Config represents the complete strand.json configuration.
type Config struct {
	// Name is the project name, used as a label on traces and metrics.
	Name string `json:"name,omitempty"`

	// Inspect contains inspect server configuration.
	Inspect InspectConfig `json:"inspect,omitempty"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// InspectConfig contains inspect server configuration.
type InspectConfig struct {
	// Addr is the listen address for the inspect server.
	Addr string `json:"addr,omitempty"`
}

// MetricsConfig contains Prometheus configuration.
type MetricsConfig struct {
	// Namespace is the metrics namespace.
	Namespace string `json:"namespace,omitempty"`

	// Subsystem is the metrics subsystem.
	Subsystem string `json:"subsystem,omitempty"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	return &Config{
		Inspect: InspectConfig{Addr: DefaultInspectAddr},
		Metrics: MetricsConfig{Namespace: DefaultMetricsNamespace},
	}
}

// Load reads the configuration from the given path and fills in defaults
// for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.configPath = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromWorkingDir loads strand.json from the current directory,
// returning the defaults if the file does not exist.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(wd, ConfigFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Path returns the path the config was loaded from, or "" for defaults.
func (c *Config) Path() string {
	return c.configPath
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Inspect.Addr == "" {
		return fmt.Errorf("config: inspect.addr must not be empty")
	}
	if c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace must not be empty")
	}
	return nil
}

// applyDefaults fills in defaults for fields an explicit file left unset.
func (c *Config) applyDefaults() {
	if c.Inspect.Addr == "" {
		c.Inspect.Addr = DefaultInspectAddr
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
}
