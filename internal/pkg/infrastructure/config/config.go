package config

import (
	"fmt"
	"os"
	"time"

	"github.com/diwise/integration-nodos/internal/pkg/application"
	"github.com/diwise/integration-nodos/internal/pkg/application/pipeline"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Pipeline        pipeline.Config      `yaml:"pipeline"`
	Application     application.Settings `yaml:"application"`
	RefreshInterval time.Duration        `yaml:"refresh_interval"`
}

func Default() *Config {
	return &Config{
		Pipeline:        pipeline.DefaultConfig(),
		Application:     application.DefaultSettings(),
		RefreshInterval: time.Minute,
	}
}

// Load reads the YAML file at path on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes YAML on top of the defaults. Unit rules and visuals are merged
// with the built-in tables.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Pipeline.DisplayLimit < 1 {
		return fmt.Errorf("pipeline.display_limit must be at least 1, got %d", c.Pipeline.DisplayLimit)
	}
	for code, rule := range c.Pipeline.Units {
		if rule.Decimals < 0 || rule.Decimals > 6 {
			return fmt.Errorf("pipeline.units.%d.decimals must be between 0 and 6, got %d", code, rule.Decimals)
		}
	}
	if c.RefreshInterval < time.Second {
		return fmt.Errorf("refresh_interval must be at least 1s, got %s", c.RefreshInterval)
	}
	return nil
}
