package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Overrides are deployment knobs read from the environment.
type Overrides struct {
	DataRoot    string `env:"CHARTFLOW_DATA_ROOT"`
	LogLevel    string `env:"CHARTFLOW_LOG_LEVEL"`
	BridgeURL   string `env:"CHARTFLOW_BRIDGE_URL"`
	DatabaseURL string `env:"CHARTFLOW_DATABASE_URL"`
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config, applies environment overrides, then
// default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	o, err := env.ParseAs[Overrides]()
	if err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if o.DataRoot != "" {
		c.Output.Root = o.DataRoot
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.BridgeURL != "" {
		c.Bridge.URL = o.BridgeURL
	}
	if o.DatabaseURL != "" {
		c.Database.URL = o.DatabaseURL
	}
	return nil
}
