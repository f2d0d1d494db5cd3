package factortel

import (
	"sync"
	"time"

	"github.com/kangbyounggwan/factor-telemetry/internal/domain"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

// Sample mirrors the internal reading type but is safe for external
// callers.
type Sample struct {
	Timestamp time.Time
	Fields    map[string]float64
}

// DeviceSample pairs a reading with the device it came from, for channel
// based ingestion.
type DeviceSample struct {
	DeviceID string
	Sample   Sample
}

func (s Sample) toDomain() domain.Reading {
	return domain.Reading{
		Timestamp: s.Timestamp,
		Fields:    copyFields(s.Fields),
	}
}

func sampleFromDomain(r domain.Reading) Sample {
	return Sample{
		Timestamp: r.Timestamp,
		Fields:    copyFields(r.Fields),
	}
}

func copyFields(src map[string]float64) map[string]float64 {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// NewChannelSource adapts a channel of device samples into a SampleSource
// so embedders can push readings without running a message bus. The source
// drains until the channel is closed or Stop is called.
func NewChannelSource(ch <-chan DeviceSample) SampleSource {
	return &channelSource{ch: ch, stopCh: make(chan struct{})}
}

type channelSource struct {
	ch     <-chan DeviceSample
	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (c *channelSource) Start(h ports.SampleHandler) error {
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.stopCh:
				return
			case ds, ok := <-c.ch:
				if !ok {
					return
				}
				h(ds.DeviceID, ds.Sample.toDomain())
			}
		}
	}()
	return nil
}

func (c *channelSource) Stop() error {
	c.once.Do(func() { close(c.stopCh) })
	if c.done != nil {
		<-c.done
	}
	return nil
}

var _ ports.SampleSource = (*channelSource)(nil)
