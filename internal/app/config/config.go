package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kangbyounggwan/factor-telemetry/internal/adapters/ingest"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

type Config struct {
	Policy   ports.Policy   `yaml:"policy"`
	Postgres PostgresConfig `yaml:"postgres"`
	Ingest   ingest.Config  `yaml:"ingest"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type PostgresConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Policy.BufferSize == 0 {
		c.Policy.BufferSize = 60
	}
	if c.Policy.FlushInterval == 0 {
		c.Policy.FlushInterval = time.Minute
	}
	if c.Policy.SessionIdleWindow == 0 {
		c.Policy.SessionIdleWindow = 10 * time.Minute
	}
	if c.Policy.MaxSamplesPerDevice == 0 {
		c.Policy.MaxSamplesPerDevice = 800
	}
	if c.Policy.TickInterval == 0 {
		c.Policy.TickInterval = time.Second
	}
	if c.Postgres.Table == "" {
		c.Postgres.Table = "sessions"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}

	// The ingest source is optional; defaults only apply once a URL is set.
	if c.Ingest.URL != "" {
		c.Ingest.ApplyDefaults()
	}
}

func (c *Config) Validate() error {
	if c.Postgres.ConnString == "" {
		return fmt.Errorf("postgres.conn_string is required")
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	if c.Policy.BufferSize < 0 || c.Policy.MaxSamplesPerDevice < 0 {
		return fmt.Errorf("policy thresholds must be positive")
	}
	if c.Ingest.URL != "" {
		if err := c.Ingest.Validate(); err != nil {
			return fmt.Errorf("ingest config: %w", err)
		}
	}
	return nil
}
