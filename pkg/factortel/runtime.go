package factortel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kangbyounggwan/factor-telemetry/internal/adapters/ingest"
	"github.com/kangbyounggwan/factor-telemetry/internal/adapters/observability"
	"github.com/kangbyounggwan/factor-telemetry/internal/adapters/store"
	"github.com/kangbyounggwan/factor-telemetry/internal/app/session"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	store         SessionStore
	source        SampleSource
	observability Observability
	clock         Clock
}

// WithStore injects a custom session store so sessions can live in any
// key-addressed document store.
func WithStore(st SessionStore) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.store = st
	}
}

// WithSource injects a custom sample source (message bus listeners,
// simulators, etc.) in place of the default NATS subscriber.
func WithSource(src SampleSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithClock overrides the time source; tests use this to drive deadlines.
func WithClock(clock Clock) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = clock
	}
}

// Runtime wires the source → registry → session store path and exposes
// simple lifecycle hooks for embedding the engine inside any Go service.
type Runtime struct {
	cfg      *Config
	obs      ports.Observability
	store    ports.SessionStore
	source   ports.SampleSource
	registry *session.Registry
	history  *session.HistoryReader
	db       *sql.DB

	metricsSrv  *http.Server
	gaugeStopCh chan struct{}
}

// NewRuntime bootstraps the default adapters (Postgres store, NATS source,
// Prometheus observability). RuntimeOption values override any dependency.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs()
	}

	var (
		db *sql.DB
		st ports.SessionStore
	)
	if overrides.store != nil {
		st = overrides.store
	} else {
		var err error
		db, err = sql.Open("postgres", cfg.Postgres.ConnString)
		if err != nil {
			return nil, err
		}
		st = store.NewPostgresStore(db, cfg.Postgres.Table)
	}
	if st == nil {
		return nil, fmt.Errorf("session store is nil")
	}

	src := overrides.source
	if src == nil && cfg.Ingest.URL != "" {
		var err error
		src, err = ingest.NewNATSSource(cfg.Ingest)
		if err != nil {
			return nil, err
		}
	}

	clock := overrides.clock
	if clock == nil {
		clock = session.WallClock()
	}

	return &Runtime{
		cfg:      cfg,
		obs:      obs,
		store:    st,
		source:   src,
		registry: session.NewRegistry(st, obs, clock, cfg.Policy),
		history:  session.NewHistoryReader(st, clock),
		db:       db,
	}, nil
}

// Conf loads YAML from disk and builds a Runtime from it.
func Conf(path string, opts ...RuntimeOption) (*Runtime, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewRuntime(cfg, opts...)
}

// Start begins ingesting and launches the observability stack. It returns
// immediately; call Run to block on a context instead.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	if r.source != nil {
		if err := r.source.Start(r.registry.Record); err != nil {
			return err
		}
	}
	r.startMetrics()
	return nil
}

// Run starts the runtime and blocks until the provided context is
// cancelled, then attempts a graceful shutdown.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops the source, drains every device's buffer, closes all open
// sessions, and releases the metrics server and DB connection.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.gaugeStopCh != nil {
		close(r.gaugeStopCh)
		r.gaugeStopCh = nil
	}

	if r.source != nil {
		if err := r.source.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := r.registry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Record hands one reading to the device's session manager. Embedders call
// this directly instead of wiring a SampleSource.
func (r *Runtime) Record(deviceID string, s Sample) {
	r.registry.Record(deviceID, s.toDomain())
}

// Release tears down one device's manager on disconnect.
func (r *Runtime) Release(ctx context.Context, deviceID string) error {
	return r.registry.Release(ctx, deviceID)
}

// History returns the device's readings inside the window, oldest first.
func (r *Runtime) History(ctx context.Context, deviceID string, window time.Duration) ([]Sample, error) {
	readings, err := r.history.History(ctx, deviceID, window)
	if err != nil {
		return nil, err
	}
	out := make([]Sample, len(readings))
	for i, rd := range readings {
		out[i] = sampleFromDomain(rd)
	}
	return out, nil
}

// Registry exposes the device registry for callers that manage device
// lifecycles themselves.
func (r *Runtime) Registry() *Registry { return r.registry }

func (r *Runtime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()

	r.gaugeStopCh = make(chan struct{})
	go r.recordResourceGauges(r.gaugeStopCh, time.Second)
}

func (r *Runtime) recordResourceGauges(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.obs.SetGauge("factortel_buffered_samples", float64(r.registry.Buffered()))
			r.obs.SetGauge("factortel_open_devices", float64(r.registry.Devices()))
		}
	}
}
