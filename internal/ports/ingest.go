package ports

import "github.com/kangbyounggwan/factor-telemetry/internal/domain"

// SampleHandler receives one reading for one device. Whether a device is in
// a state that should produce readings at all is the publisher's call; the
// engine records whatever it is handed.
type SampleHandler func(deviceID string, r domain.Reading)

// SampleSource streams device readings into the engine (message bus,
// socket listener, simulators, etc.).
type SampleSource interface {
	Start(h SampleHandler) error
	Stop() error
}
