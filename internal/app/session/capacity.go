package session

import (
	"context"

	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

// enforceCapacity evicts a device's oldest sessions until its retained
// sample total is back under maxSamples. Eviction is coarse: whole sessions
// only, so the post-eviction total can still exceed the cap by up to one
// session's size. Failures are logged and swallowed; the cap must never
// block ingestion.
func enforceCapacity(ctx context.Context, st ports.SessionStore, obs ports.Observability, deviceID string, maxSamples int) {
	if maxSamples <= 0 {
		return
	}

	sessions, err := st.ListByDevice(ctx, deviceID, ports.SessionQuery{Order: ports.OrderStartDesc})
	if err != nil {
		obs.LogError("capacity_scan_failed", err, ports.Field{Key: "device", Value: deviceID})
		return
	}

	total := 0
	for _, s := range sessions {
		total += s.SampleCount
	}
	if total <= maxSamples {
		return
	}

	excess := total - maxSamples
	var (
		ids     []string
		covered int
	)
	// sessions is newest-first; walk from the oldest end
	for i := len(sessions) - 1; i >= 0 && covered < excess; i-- {
		ids = append(ids, sessions[i].ID)
		covered += sessions[i].SampleCount
	}

	if err := st.Delete(ctx, ids); err != nil {
		obs.LogError("capacity_evict_failed", err, ports.Field{Key: "device", Value: deviceID})
		return
	}
	obs.RecordEviction(deviceID, len(ids), covered)
}
