package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kangbyounggwan/factor-telemetry/internal/domain"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

// MemStore is a map-backed SessionStore for tests and embedded use. It
// copies sessions on the way in and out so callers never share slices with
// the stored records.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]*domain.Session)}
}

func (m *MemStore) Fetch(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ports.ErrSessionNotFound
	}
	return copySession(s), nil
}

func (m *MemStore) Create(ctx context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = copySession(s)
	return nil
}

func (m *MemStore) Update(ctx context.Context, id string, upd ports.SessionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ports.ErrSessionNotFound
	}
	if upd.ExpectCount != nil && s.SampleCount != *upd.ExpectCount {
		return ports.ErrSessionConflict
	}
	if upd.Samples != nil {
		s.Samples = append([]domain.Reading(nil), upd.Samples...)
		s.SampleCount = upd.SampleCount
	}
	s.EndTime = upd.EndTime
	return nil
}

func (m *MemStore) ListByDevice(ctx context.Context, deviceID string, q ports.SessionQuery) ([]*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Session
	for _, s := range m.sessions {
		if s.DeviceID != deviceID {
			continue
		}
		if !q.MinEndTime.IsZero() && s.EndTime.Before(q.MinEndTime) {
			continue
		}
		out = append(out, copySession(s))
	}

	switch q.Order {
	case ports.OrderStartDesc:
		sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	case ports.OrderEndDesc:
		sort.Slice(out, func(i, j int) bool { return out[i].EndTime.After(out[j].EndTime) })
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemStore) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.sessions, id)
	}
	return nil
}

// Len reports how many sessions are stored, across all devices.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func copySession(s *domain.Session) *domain.Session {
	dup := *s
	dup.Samples = append([]domain.Reading(nil), s.Samples...)
	return &dup
}

var _ ports.SessionStore = (*MemStore)(nil)
