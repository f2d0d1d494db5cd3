package session

import (
	"context"
	"errors"
	"sync"

	"github.com/kangbyounggwan/factor-telemetry/internal/domain"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

// Registry owns one Manager per device. Managers are created lazily on the
// first reading and torn down exactly once on Release, so the transport
// side only ever talks to the registry.
type Registry struct {
	store ports.SessionStore
	obs   ports.Observability
	clock ports.Clock
	pol   ports.Policy

	mu       sync.Mutex
	managers map[string]*Manager
}

func NewRegistry(st ports.SessionStore, obs ports.Observability, clock ports.Clock, pol ports.Policy) *Registry {
	if clock == nil {
		clock = WallClock()
	}
	return &Registry{
		store:    st,
		obs:      obs,
		clock:    clock,
		pol:      pol,
		managers: make(map[string]*Manager),
	}
}

// Record routes one reading to the device's manager, creating and starting
// it if this is the device's first reading.
func (r *Registry) Record(deviceID string, reading domain.Reading) {
	r.manager(deviceID).AddReading(reading)
}

func (r *Registry) manager(deviceID string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.managers[deviceID]
	if !ok {
		m = NewManager(deviceID, r.store, r.obs, r.clock, r.pol)
		m.Start()
		r.managers[deviceID] = m
		r.obs.SetGauge("factortel_open_devices", float64(len(r.managers)))
	}
	return m
}

// Release destroys the device's manager, draining its buffer and closing
// its session. Safe to call for unknown devices and safe to call twice;
// only the first call for a live manager does work.
func (r *Registry) Release(ctx context.Context, deviceID string) error {
	r.mu.Lock()
	m, ok := r.managers[deviceID]
	delete(r.managers, deviceID)
	remaining := len(r.managers)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	r.obs.SetGauge("factortel_open_devices", float64(remaining))
	return m.Destroy(ctx)
}

// Shutdown releases every device.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	managers := make([]*Manager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.managers = make(map[string]*Manager)
	r.mu.Unlock()

	r.obs.SetGauge("factortel_open_devices", 0)

	var errs []error
	for _, m := range managers {
		if err := m.Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Devices reports how many managers are live.
func (r *Registry) Devices() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// Buffered sums unflushed readings across all devices.
func (r *Registry) Buffered() int {
	r.mu.Lock()
	managers := make([]*Manager, 0, len(r.managers))
	for _, m := range r.managers {
		managers = append(managers, m)
	}
	r.mu.Unlock()

	total := 0
	for _, m := range managers {
		total += m.Buffered()
	}
	return total
}
