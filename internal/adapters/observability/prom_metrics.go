package observability

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs() *PromObs {
	buffered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "factortel_samples_buffered_total",
		Help: "Total readings accepted into per-device buffers.",
	})
	flushed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "factortel_samples_flushed_total",
		Help: "Total readings merged into persisted sessions.",
	})
	flushFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "factortel_flush_failures_total",
		Help: "Flush attempts abandoned on store errors; the buffer is retried on the next trigger.",
	})
	sessionsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "factortel_sessions_created_total",
		Help: "Sessions created because no open session was eligible for reuse.",
	})
	sessionsEvicted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "factortel_sessions_evicted_total",
		Help: "Whole sessions deleted by the retention cap.",
	})
	samplesEvicted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "factortel_samples_evicted_total",
		Help: "Readings dropped along with evicted sessions.",
	})
	bufferGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "factortel_buffered_samples",
		Help: "Current number of unflushed readings across all devices.",
	})
	devicesGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "factortel_open_devices",
		Help: "Devices with a live session manager.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flush_store_latency_seconds",
		Help:    "Latency of the fetch-merge-update round trip per flush.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	prometheus.MustRegister(buffered, flushed, flushFailures, sessionsCreated,
		sessionsEvicted, samplesEvicted, bufferGauge, devicesGauge, latency)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"factortel_samples_buffered_total": buffered,
			"factortel_samples_flushed_total":  flushed,
			"factortel_flush_failures_total":   flushFailures,
			"factortel_sessions_created_total": sessionsCreated,
			"factortel_sessions_evicted_total": sessionsEvicted,
			"factortel_samples_evicted_total":  samplesEvicted,
		},
		gauges: map[string]prometheus.Gauge{
			"factortel_buffered_samples": bufferGauge,
			"factortel_open_devices":     devicesGauge,
		},
		histos: map[string]prometheus.Observer{
			"flush_store_latency_seconds": latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("ERROR: %s: %v", msg, err)
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("CRITICAL: %s: %v", msg, err)
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordEviction(deviceID string, sessions, samples int) {
	p.IncCounter("factortel_sessions_evicted_total", float64(sessions))
	p.IncCounter("factortel_samples_evicted_total", float64(samples))
	log.Printf("evicted %d sessions (%d samples) device=%s", sessions, samples, deviceID)
}
