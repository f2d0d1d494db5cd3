package ports

import "time"

// Policy holds the tunable thresholds of the session engine.
type Policy struct {
	// BufferSize triggers an immediate flush once the in-memory buffer
	// reaches this many readings.
	BufferSize int `yaml:"buffer_size"`
	// FlushInterval is the periodic flush cadence for partial buffers.
	FlushInterval time.Duration `yaml:"flush_interval"`
	// SessionIdleWindow is the maximum silence before a session is closed
	// and before a persisted session stops being eligible for reuse.
	SessionIdleWindow time.Duration `yaml:"session_idle_window"`
	// MaxSamplesPerDevice is the best-effort retention cap enforced by
	// evicting whole sessions, oldest first.
	MaxSamplesPerDevice int `yaml:"max_samples_per_device"`
	// TickInterval is how often each manager checks its flush and idle
	// deadlines.
	TickInterval time.Duration `yaml:"tick_interval"`
}
