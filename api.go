package factortel

import (
	base "github.com/kangbyounggwan/factor-telemetry/pkg/factortel"
)

// Re-exported errors for convenience.
var (
	ErrSessionNotFound = base.ErrSessionNotFound
	ErrSessionConflict = base.ErrSessionConflict
)

// Type aliases so consumers can import
// github.com/kangbyounggwan/factor-telemetry directly.
type (
	Config         = base.Config
	Policy         = base.Policy
	PostgresConfig = base.PostgresConfig
	IngestConfig   = base.IngestConfig
	MetricsConfig  = base.MetricsConfig
	Runtime        = base.Runtime
	RuntimeOption  = base.RuntimeOption
	Sample         = base.Sample
	DeviceSample   = base.DeviceSample
	Reading        = base.Reading
	Session        = base.Session
	SessionStore   = base.SessionStore
	SessionUpdate  = base.SessionUpdate
	SessionQuery   = base.SessionQuery
	SampleSource   = base.SampleSource
	SampleHandler  = base.SampleHandler
	Observability  = base.Observability
	Field          = base.Field
	Clock          = base.Clock
	Registry       = base.Registry
	Manager        = base.Manager
	HistoryReader  = base.HistoryReader
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Runtime and options.
func Conf(path string, opts ...RuntimeOption) (*Runtime, error) {
	return base.Conf(path, opts...)
}

func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithStore(st SessionStore) RuntimeOption {
	return base.WithStore(st)
}

func WithSource(src SampleSource) RuntimeOption {
	return base.WithSource(src)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithClock(clock Clock) RuntimeOption {
	return base.WithClock(clock)
}

// Source adapters.
func NewChannelSource(ch <-chan DeviceSample) SampleSource {
	return base.NewChannelSource(ch)
}

// NewMemStore returns the in-memory session store for tests and embedders.
func NewMemStore() SessionStore {
	return base.NewMemStore()
}
