package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kangbyounggwan/factor-telemetry/internal/domain"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

// HistoryReader merges persisted sessions into one time-windowed, ordered
// reading sequence. Read-only.
type HistoryReader struct {
	store ports.SessionStore
	clock ports.Clock
}

func NewHistoryReader(st ports.SessionStore, clock ports.Clock) *HistoryReader {
	if clock == nil {
		clock = WallClock()
	}
	return &HistoryReader{store: st, clock: clock}
}

// History returns the device's readings newer than now-window, ascending by
// timestamp. The final sort is deliberate: a retried flush can leave
// readings slightly out of order inside a session. No matching sessions is
// an empty result, not an error.
func (h *HistoryReader) History(ctx context.Context, deviceID string, window time.Duration) ([]domain.Reading, error) {
	cutoff := h.clock.Now().Add(-window)

	sessions, err := h.store.ListByDevice(ctx, deviceID, ports.SessionQuery{
		MinEndTime: cutoff,
		Order:      ports.OrderStartAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", deviceID, err)
	}

	var out []domain.Reading
	for _, s := range sessions {
		for _, r := range s.Samples {
			if !r.Timestamp.Before(cutoff) {
				out = append(out, r)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}
