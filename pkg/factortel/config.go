package factortel

import (
	"github.com/kangbyounggwan/factor-telemetry/internal/adapters/ingest"
	"github.com/kangbyounggwan/factor-telemetry/internal/app/config"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects
// can construct or modify it programmatically.
type Config = config.Config

type (
	// Policy holds the engine thresholds (buffer size, flush interval,
	// idle window, retention cap, tick interval).
	Policy = ports.Policy
	// PostgresConfig configures the session store.
	PostgresConfig = config.PostgresConfig
	// IngestConfig configures the NATS sample source.
	IngestConfig = ingest.Config
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
