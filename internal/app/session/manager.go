package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kangbyounggwan/factor-telemetry/internal/domain"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

// Manager buffers one device's readings in memory and merges them into a
// persisted session on three triggers: the buffer hitting BufferSize, the
// periodic flush deadline, and the idle deadline that closes a session
// after silence. Deadlines are plain values checked by a single ticker
// goroutine, so nothing platform-level is armed per reading.
//
// The store write is a non-atomic fetch-merge-update; flushMu serializes
// every flush and close for the device so two triggers can never clobber
// each other's merge. bufMu is separate so AddReading never waits on store
// I/O.
type Manager struct {
	deviceID string
	store    ports.SessionStore
	obs      ports.Observability
	clock    ports.Clock
	pol      ports.Policy

	bufMu        sync.Mutex
	buf          []domain.Reading
	lastSampleAt time.Time
	lastFlushAt  time.Time

	flushMu sync.Mutex
	res     *resolver

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewManager(deviceID string, st ports.SessionStore, obs ports.Observability, clock ports.Clock, pol ports.Policy) *Manager {
	if clock == nil {
		clock = WallClock()
	}
	normalizePolicy(&pol)

	m := &Manager{
		deviceID:    deviceID,
		store:       st,
		obs:         obs,
		clock:       clock,
		pol:         pol,
		lastFlushAt: clock.Now(),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	m.res = &resolver{
		deviceID: deviceID,
		store:    st,
		obs:      obs,
		clock:    clock,
		pol:      pol,
	}
	return m
}

func normalizePolicy(pol *ports.Policy) {
	if pol.BufferSize <= 0 {
		pol.BufferSize = 60
	}
	if pol.FlushInterval <= 0 {
		pol.FlushInterval = time.Minute
	}
	if pol.SessionIdleWindow <= 0 {
		pol.SessionIdleWindow = 10 * time.Minute
	}
	if pol.MaxSamplesPerDevice <= 0 {
		pol.MaxSamplesPerDevice = 800
	}
	if pol.TickInterval <= 0 {
		pol.TickInterval = time.Second
	}
}

// Start launches the deadline ticker. Idempotent.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.started.Store(true)
		go m.run()
	})
}

func (m *Manager) run() {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.pol.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick(context.Background())
		}
	}
}

// AddReading appends a reading to the buffer and refreshes the idle
// deadline. It returns immediately; a threshold-triggered flush runs in the
// background and any persistence failure is retried on the next trigger.
func (m *Manager) AddReading(r domain.Reading) {
	now := m.clock.Now()

	m.bufMu.Lock()
	m.buf = append(m.buf, r)
	m.lastSampleAt = now
	n := len(m.buf)
	m.bufMu.Unlock()

	m.obs.IncCounter("factortel_samples_buffered_total", 1)

	if n >= m.pol.BufferSize {
		go func() { _ = m.Flush(context.Background()) }()
	}
}

// tick checks both deadlines against the clock. A flush only runs when the
// interval elapsed with something buffered; an idle close only when the
// device has been silent for the whole idle window.
func (m *Manager) tick(ctx context.Context) {
	now := m.clock.Now()

	m.bufMu.Lock()
	buffered := len(m.buf)
	lastSample := m.lastSampleAt
	lastFlush := m.lastFlushAt
	m.bufMu.Unlock()

	if buffered > 0 && now.Sub(lastFlush) >= m.pol.FlushInterval {
		_ = m.Flush(ctx)
	}

	if !lastSample.IsZero() && now.Sub(lastSample) >= m.pol.SessionIdleWindow {
		_ = m.CloseSession(ctx)
	}
}

// Flush merges the buffered readings into the device's session. The buffer
// is cleared only after both the fetch and the update succeed; any failure
// leaves it intact for the next trigger. An empty buffer performs no store
// calls.
func (m *Manager) Flush(ctx context.Context) error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	m.bufMu.Lock()
	n := len(m.buf)
	pending := make([]domain.Reading, n)
	copy(pending, m.buf)
	m.bufMu.Unlock()

	if n == 0 {
		return nil
	}

	id, err := m.res.resolve(ctx)
	if err != nil {
		m.obs.IncCounter("factortel_flush_failures_total", 1)
		return err
	}

	cur, err := m.store.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			// the cached session was evicted out from under us
			m.res.reset()
		}
		m.obs.LogError("session_fetch_failed", err, ports.Field{Key: "session", Value: id})
		m.obs.IncCounter("factortel_flush_failures_total", 1)
		return err
	}

	merged := make([]domain.Reading, 0, len(cur.Samples)+n)
	merged = append(merged, cur.Samples...)
	merged = append(merged, pending...)

	now := m.clock.Now()
	expect := cur.SampleCount
	start := time.Now()
	err = m.store.Update(ctx, id, ports.SessionUpdate{
		Samples:     merged,
		SampleCount: len(merged),
		EndTime:     now,
		ExpectCount: &expect,
	})
	if err != nil {
		msg := "session_update_failed"
		switch {
		case errors.Is(err, ports.ErrSessionConflict):
			msg = "session_update_conflict"
		case errors.Is(err, ports.ErrSessionNotFound):
			m.res.reset()
		}
		m.obs.LogError(msg, err, ports.Field{Key: "session", Value: id})
		m.obs.IncCounter("factortel_flush_failures_total", 1)
		return err
	}
	m.obs.ObserveLatency("flush_store_latency_seconds", time.Since(start).Seconds())

	m.bufMu.Lock()
	m.buf = append(m.buf[:0:0], m.buf[n:]...) // readings that arrived mid-flush stay
	m.lastFlushAt = now
	m.bufMu.Unlock()

	m.obs.IncCounter("factortel_samples_flushed_total", float64(n))
	return nil
}

// CloseSession drains the buffer, touches the session's end time, clears
// the cached session id, and disarms the idle deadline. The next reading
// resolves a session from scratch.
func (m *Manager) CloseSession(ctx context.Context) error {
	flushErr := m.Flush(ctx)

	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	m.bufMu.Lock()
	m.lastSampleAt = time.Time{}
	m.bufMu.Unlock()

	id := m.res.current()
	if id == "" {
		return flushErr
	}
	m.res.reset()

	if err := m.store.Update(ctx, id, ports.SessionUpdate{EndTime: m.clock.Now()}); err != nil {
		m.obs.LogError("session_close_failed", err, ports.Field{Key: "session", Value: id})
		return errors.Join(flushErr, err)
	}
	return flushErr
}

// Destroy stops the ticker and closes the session. Terminal call for the
// device; the registry invokes it exactly once on disconnect.
func (m *Manager) Destroy(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	if m.started.Load() {
		<-m.doneCh
	}
	return m.CloseSession(ctx)
}

// Buffered reports how many readings are waiting for the next flush.
func (m *Manager) Buffered() int {
	m.bufMu.Lock()
	defer m.bufMu.Unlock()
	return len(m.buf)
}

func (m *Manager) DeviceID() string { return m.deviceID }
