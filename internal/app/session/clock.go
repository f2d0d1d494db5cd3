package session

import (
	"time"

	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// WallClock returns the real time source used outside tests.
func WallClock() ports.Clock { return wallClock{} }
