package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kangbyounggwan/factor-telemetry/internal/adapters/store"
	"github.com/kangbyounggwan/factor-telemetry/internal/domain"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

var testPolicy = ports.Policy{
	BufferSize:          3,
	FlushInterval:       time.Minute,
	SessionIdleWindow:   10 * time.Minute,
	MaxSamplesPerDevice: 800,
	TickInterval:        time.Second,
}

func TestAddReadingBelowThresholdNoStoreCalls(t *testing.T) {
	clk := newFakeClock()
	fs := wrapStore(store.NewMemStore())
	m := NewManager("d1", fs, newTestObs(), clk, testPolicy)

	m.AddReading(reading(clk, 210))
	m.AddReading(reading(clk, 211))

	if got := fs.callCount(); got != 0 {
		t.Fatalf("expected no store calls below threshold, got %d", got)
	}
	if got := m.Buffered(); got != 2 {
		t.Fatalf("expected 2 buffered readings, got %d", got)
	}
}

func TestAddReadingThresholdTriggersFlush(t *testing.T) {
	clk := newFakeClock()
	mem := store.NewMemStore()
	m := NewManager("d1", mem, newTestObs(), clk, testPolicy)

	m.AddReading(reading(clk, 210))
	m.AddReading(reading(clk, 211))
	m.AddReading(reading(clk, 212))

	waitUntil(t, func() bool {
		return mem.Len() == 1 && m.Buffered() == 0
	})

	s := onlySession(t, mem, "d1")
	if len(s.Samples) != 3 || s.SampleCount != 3 {
		t.Fatalf("expected 3 persisted samples with matching count, got %d/%d", len(s.Samples), s.SampleCount)
	}
}

func TestFlushEmptyBufferIsNoop(t *testing.T) {
	clk := newFakeClock()
	fs := wrapStore(store.NewMemStore())
	m := NewManager("d1", fs, newTestObs(), clk, testPolicy)

	if err := m.Flush(context.Background()); err != nil {
		t.Fatalf("flush on empty buffer: %v", err)
	}
	if got := fs.callCount(); got != 0 {
		t.Fatalf("expected zero store calls for empty flush, got %d", got)
	}
}

func TestTickFlushesAfterInterval(t *testing.T) {
	clk := newFakeClock()
	mem := store.NewMemStore()
	m := NewManager("d1", mem, newTestObs(), clk, testPolicy)

	m.AddReading(reading(clk, 210))

	m.tick(context.Background())
	if mem.Len() != 0 {
		t.Fatalf("expected no flush before the interval elapsed")
	}

	clk.Advance(testPolicy.FlushInterval + time.Second)
	m.tick(context.Background())

	s := onlySession(t, mem, "d1")
	if s.SampleCount != 1 {
		t.Fatalf("expected 1 flushed sample, got %d", s.SampleCount)
	}
	if m.Buffered() != 0 {
		t.Fatalf("expected buffer cleared after timer flush")
	}
}

func TestFlushFailureKeepsBuffer(t *testing.T) {
	clk := newFakeClock()
	fs := wrapStore(store.NewMemStore())
	obs := newTestObs()
	m := NewManager("d1", fs, obs, clk, testPolicy)

	m.AddReading(reading(clk, 210))
	m.AddReading(reading(clk, 211))

	fs.setUpdateErr(errors.New("store unavailable"))
	if err := m.Flush(context.Background()); err == nil {
		t.Fatalf("expected flush to fail")
	}
	if got := m.Buffered(); got != 2 {
		t.Fatalf("expected buffer preserved on failure, got %d", got)
	}
	if obs.counter("factortel_flush_failures_total") != 1 {
		t.Fatalf("expected flush failure counter")
	}

	fs.setUpdateErr(nil)
	if err := m.Flush(context.Background()); err != nil {
		t.Fatalf("retry flush: %v", err)
	}

	s := onlySession(t, fs.inner, "d1")
	if s.SampleCount != 2 || len(s.Samples) != 2 {
		t.Fatalf("expected both readings persisted on retry, got %d/%d", len(s.Samples), s.SampleCount)
	}
	if m.Buffered() != 0 {
		t.Fatalf("expected buffer cleared after retry")
	}
}

func TestFlushConflictKeepsBuffer(t *testing.T) {
	clk := newFakeClock()
	fs := wrapStore(store.NewMemStore())
	obs := newTestObs()
	m := NewManager("d1", fs, obs, clk, testPolicy)

	m.AddReading(reading(clk, 210))

	fs.setUpdateErr(ports.ErrSessionConflict)
	err := m.Flush(context.Background())
	if !errors.Is(err, ports.ErrSessionConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if m.Buffered() != 1 {
		t.Fatalf("expected buffer preserved on conflict")
	}

	fs.setUpdateErr(nil)
	if err := m.Flush(context.Background()); err != nil {
		t.Fatalf("retry after conflict: %v", err)
	}
	if m.Buffered() != 0 {
		t.Fatalf("expected buffer cleared after retry")
	}
}

func TestCloseSessionDrainsAndTouchesEndTime(t *testing.T) {
	clk := newFakeClock()
	mem := store.NewMemStore()
	m := NewManager("d1", mem, newTestObs(), clk, testPolicy)

	m.AddReading(reading(clk, 210))
	m.AddReading(reading(clk, 211))

	clk.Advance(30 * time.Second)
	closeAt := clk.Now()

	if err := m.CloseSession(context.Background()); err != nil {
		t.Fatalf("close session: %v", err)
	}

	s := onlySession(t, mem, "d1")
	if s.SampleCount != 2 {
		t.Fatalf("expected remainder drained on close, got %d samples", s.SampleCount)
	}
	if !s.EndTime.Equal(closeAt) {
		t.Fatalf("expected end time %s, got %s", closeAt, s.EndTime)
	}
	if m.Buffered() != 0 {
		t.Fatalf("expected buffer empty after close")
	}
}

func TestIdleTickClosesSession(t *testing.T) {
	clk := newFakeClock()
	mem := store.NewMemStore()
	m := NewManager("d1", mem, newTestObs(), clk, testPolicy)

	m.AddReading(reading(clk, 210))
	if err := m.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	clk.Advance(testPolicy.SessionIdleWindow + time.Second)
	closeAt := clk.Now()
	m.tick(context.Background())

	s := onlySession(t, mem, "d1")
	if !s.EndTime.Equal(closeAt) {
		t.Fatalf("expected idle close to touch end time, got %s", s.EndTime)
	}

	// the idle deadline is disarmed; another tick must not touch again
	clk.Advance(testPolicy.SessionIdleWindow + time.Second)
	m.tick(context.Background())
	s = onlySession(t, mem, "d1")
	if !s.EndTime.Equal(closeAt) {
		t.Fatalf("expected idle close to fire once, end time moved to %s", s.EndTime)
	}
}

func TestDestroyStopsTickerAndClosesSession(t *testing.T) {
	clk := newFakeClock()
	mem := store.NewMemStore()
	m := NewManager("d1", mem, newTestObs(), clk, testPolicy)
	m.Start()

	m.AddReading(reading(clk, 210))

	if err := m.Destroy(context.Background()); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	s := onlySession(t, mem, "d1")
	if s.SampleCount != 1 {
		t.Fatalf("expected buffered reading persisted on destroy, got %d", s.SampleCount)
	}

	select {
	case <-m.doneCh:
	default:
		t.Fatalf("expected ticker goroutine to have exited")
	}
}

// --- test fixtures ---

func reading(clk ports.Clock, nozzle float64) domain.Reading {
	return domain.Reading{
		Timestamp: clk.Now(),
		Fields: map[string]float64{
			"nozzle_actual": nozzle,
			"nozzle_target": 210,
			"bed_actual":    60,
			"bed_target":    60,
		},
	}
}

func onlySession(t *testing.T, st ports.SessionStore, deviceID string) *domain.Session {
	t.Helper()
	sessions, err := st.ListByDevice(context.Background(), deviceID, ports.SessionQuery{})
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected exactly one session, got %d", len(sessions))
	}
	return sessions[0]
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within 2s")
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testObs struct {
	mu        sync.Mutex
	errs      []string
	criticals []string
	counters  map[string]float64
	evictions int
}

func newTestObs() *testObs {
	return &testObs{counters: make(map[string]float64)}
}

func (o *testObs) LogInfo(string, ...ports.Field) {}

func (o *testObs) LogError(msg string, err error, _ ...ports.Field) {
	o.mu.Lock()
	o.errs = append(o.errs, msg)
	o.mu.Unlock()
}

func (o *testObs) LogCritical(msg string, err error, _ ...ports.Field) {
	o.mu.Lock()
	o.criticals = append(o.criticals, msg)
	o.mu.Unlock()
}

func (o *testObs) IncCounter(name string, v float64) {
	o.mu.Lock()
	o.counters[name] += v
	o.mu.Unlock()
}

func (o *testObs) ObserveLatency(string, float64) {}

func (o *testObs) SetGauge(string, float64) {}

func (o *testObs) RecordEviction(_ string, sessions, _ int) {
	o.mu.Lock()
	o.evictions += sessions
	o.mu.Unlock()
}

func (o *testObs) counter(name string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters[name]
}

func (o *testObs) criticalCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.criticals)
}

// flakyStore wraps a real store with call counting and injectable errors.
type flakyStore struct {
	inner ports.SessionStore

	mu        sync.Mutex
	calls     int
	fetchErr  error
	createErr error
	updateErr error
	listErr   error
	deleteErr error
}

func wrapStore(inner ports.SessionStore) *flakyStore {
	return &flakyStore{inner: inner}
}

func (f *flakyStore) Fetch(ctx context.Context, id string) (*domain.Session, error) {
	if err := f.step(&f.fetchErr); err != nil {
		return nil, err
	}
	return f.inner.Fetch(ctx, id)
}

func (f *flakyStore) Create(ctx context.Context, s *domain.Session) error {
	if err := f.step(&f.createErr); err != nil {
		return err
	}
	return f.inner.Create(ctx, s)
}

func (f *flakyStore) Update(ctx context.Context, id string, upd ports.SessionUpdate) error {
	if err := f.step(&f.updateErr); err != nil {
		return err
	}
	return f.inner.Update(ctx, id, upd)
}

func (f *flakyStore) ListByDevice(ctx context.Context, deviceID string, q ports.SessionQuery) ([]*domain.Session, error) {
	if err := f.step(&f.listErr); err != nil {
		return nil, err
	}
	return f.inner.ListByDevice(ctx, deviceID, q)
}

func (f *flakyStore) Delete(ctx context.Context, ids []string) error {
	if err := f.step(&f.deleteErr); err != nil {
		return err
	}
	return f.inner.Delete(ctx, ids)
}

func (f *flakyStore) step(errp *error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return *errp
}

func (f *flakyStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *flakyStore) setUpdateErr(err error) {
	f.mu.Lock()
	f.updateErr = err
	f.mu.Unlock()
}

func (f *flakyStore) setCreateErr(err error) {
	f.mu.Lock()
	f.createErr = err
	f.mu.Unlock()
}

func (f *flakyStore) setListErr(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

func (f *flakyStore) setDeleteErr(err error) {
	f.mu.Lock()
	f.deleteErr = err
	f.mu.Unlock()
}

var _ ports.SessionStore = (*flakyStore)(nil)
