package factortel

import (
	"github.com/kangbyounggwan/factor-telemetry/internal/adapters/store"
	"github.com/kangbyounggwan/factor-telemetry/internal/app/session"
	"github.com/kangbyounggwan/factor-telemetry/internal/domain"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

// Reading is one timestamped sensor sample as stored inside a session.
type Reading = domain.Reading

// Session is a persisted contiguous run of readings for one device.
type Session = domain.Session

// SessionStore is the persistence gateway; implement it to point the engine
// at any key-addressed document store.
type SessionStore = ports.SessionStore

// SessionUpdate is the partial write passed to SessionStore.Update.
type SessionUpdate = ports.SessionUpdate

// SessionQuery narrows SessionStore.ListByDevice.
type SessionQuery = ports.SessionQuery

// Observability emits metrics/logs about flushes, sessions, and evictions.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Clock abstracts the engine's time source.
type Clock = ports.Clock

// SampleSource streams device readings into the engine.
type SampleSource = ports.SampleSource

// SampleHandler receives one reading for one device.
type SampleHandler = ports.SampleHandler

// Registry owns one session manager per device.
type Registry = session.Registry

// Manager is the per-device buffering and flush engine.
type Manager = session.Manager

// HistoryReader merges sessions into windowed, ordered reading sequences.
type HistoryReader = session.HistoryReader

// Re-exported store errors.
var (
	ErrSessionNotFound = ports.ErrSessionNotFound
	ErrSessionConflict = ports.ErrSessionConflict
)

// NewMemStore returns the in-memory SessionStore used by tests and
// embedders that do not need durability.
func NewMemStore() *store.MemStore {
	return store.NewMemStore()
}
