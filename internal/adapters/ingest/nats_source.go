package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kangbyounggwan/factor-telemetry/internal/domain"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

// Config holds the NATS connection and subscription details for the sample
// source.
type Config struct {
	URL string `yaml:"url"`
	// Subject is the subscription subject, e.g. "factortel.samples.>".
	Subject string `yaml:"subject"`
	// QueueGroup, when set, load-balances frames across engine instances.
	QueueGroup string `yaml:"queue_group"`
	// Name shows up in NATS monitoring.
	Name string `yaml:"name"`
}

func (c *Config) ApplyDefaults() {
	if c.Subject == "" {
		c.Subject = "factortel.samples.>"
	}
	if c.Name == "" {
		c.Name = "factortel-ingest"
	}
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	return nil
}

// frame is the wire format published by the device-status collaborator. The
// publisher only emits frames while the device is in a producing state; no
// gating happens here.
type frame struct {
	DeviceID  string             `json:"device_id"`
	Timestamp time.Time          `json:"ts"`
	Fields    map[string]float64 `json:"fields"`
}

// NATSSource subscribes to a subject and feeds decoded readings to the
// handler.
type NATSSource struct {
	cfg Config
	nc  *nats.Conn
	sub *nats.Subscription
}

func NewNATSSource(cfg Config) (*NATSSource, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ingest config: %w", err)
	}
	return &NATSSource{cfg: cfg}, nil
}

func (n *NATSSource) Start(h ports.SampleHandler) error {
	nc, err := nats.Connect(n.cfg.URL,
		nats.Name(n.cfg.Name),
		nats.PingInterval(5*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", n.cfg.URL, err)
	}
	n.nc = nc

	cb := func(msg *nats.Msg) {
		var f frame
		if err := json.Unmarshal(msg.Data, &f); err != nil {
			return
		}
		if f.DeviceID == "" || len(f.Fields) == 0 {
			return
		}
		if f.Timestamp.IsZero() {
			f.Timestamp = time.Now()
		}
		h(f.DeviceID, domain.Reading{Timestamp: f.Timestamp, Fields: f.Fields})
	}

	if n.cfg.QueueGroup != "" {
		n.sub, err = nc.QueueSubscribe(n.cfg.Subject, n.cfg.QueueGroup, cb)
	} else {
		n.sub, err = nc.Subscribe(n.cfg.Subject, cb)
	}
	if err != nil {
		nc.Close()
		n.nc = nil
		return fmt.Errorf("nats subscribe %s: %w", n.cfg.Subject, err)
	}
	return nil
}

func (n *NATSSource) Stop() error {
	if n.sub != nil {
		if err := n.sub.Drain(); err != nil {
			return err
		}
		n.sub = nil
	}
	if n.nc != nil {
		n.nc.Close()
		n.nc = nil
	}
	return nil
}

var _ ports.SampleSource = (*NATSSource)(nil)
