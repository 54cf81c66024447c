// Package config provides configuration loading and management for mapmod.
// It handles loading defaults from YAML files; command-line flags always
// take precedence over values loaded here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mapmod/pkg/filter"
)

// Config represents the application defaults loaded from YAML.
type Config struct {
	// Resampling parameters
	Resampling struct {
		// SplineOrder is the default B-spline interpolation order, 0 to 5
		SplineOrder int `yaml:"splineOrder"`
	} `yaml:"resampling"`

	// Filter parameters
	Filter struct {
		// EdgeWidth is the cosine edge width of Fourier filters, in voxels
		EdgeWidth int `yaml:"edgeWidth"`
	} `yaml:"filter"`

	// Output parameters
	Output struct {
		// Verbose raises logging to informational messages
		Verbose bool `yaml:"verbose"`

		// Quiet restricts logging to errors; wins over Verbose
		Quiet bool `yaml:"quiet"`

		// PreviewDir, when set, receives central-section images of every
		// written map
		PreviewDir string `yaml:"previewDir"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Resampling.SplineOrder = 3
	cfg.Filter.EdgeWidth = filter.DefaultEdgeWidth

	cfg.Output.Verbose = false
	cfg.Output.Quiet = false
	cfg.Output.PreviewDir = ""

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
