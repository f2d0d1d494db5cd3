package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kangbyounggwan/factor-telemetry/internal/domain"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

// resolver decides which session id buffered readings belong to. Reusing a
// recent session keeps one continuous job from fragmenting into many short
// sessions just because the flush or idle timers fired between readings.
//
// sessionID is guarded by the owning manager's flushMu.
type resolver struct {
	deviceID string
	store    ports.SessionStore
	obs      ports.Observability
	clock    ports.Clock
	pol      ports.Policy

	sessionID string
}

func (r *resolver) resolve(ctx context.Context) (string, error) {
	if r.sessionID != "" {
		return r.sessionID, nil
	}

	now := r.clock.Now()

	open, err := r.store.ListByDevice(ctx, r.deviceID, ports.SessionQuery{
		MinEndTime: now.Add(-r.pol.SessionIdleWindow),
		Order:      ports.OrderEndDesc,
		Limit:      1,
	})
	if err != nil {
		r.obs.LogError("session_lookup_failed", err, ports.Field{Key: "device", Value: r.deviceID})
		return "", err
	}
	if len(open) > 0 {
		r.sessionID = open[0].ID
		return r.sessionID, nil
	}

	// Best-effort: eviction failures never block session creation.
	enforceCapacity(ctx, r.store, r.obs, r.deviceID, r.pol.MaxSamplesPerDevice)

	s := &domain.Session{
		ID:        uuid.NewString(),
		DeviceID:  r.deviceID,
		StartTime: now,
		EndTime:   now,
	}
	if err := r.store.Create(ctx, s); err != nil {
		r.obs.LogCritical("session_create_failed", err, ports.Field{Key: "device", Value: r.deviceID})
		return "", fmt.Errorf("create session for %s: %w", r.deviceID, err)
	}
	r.obs.IncCounter("factortel_sessions_created_total", 1)

	r.sessionID = s.ID
	return s.ID, nil
}

func (r *resolver) current() string { return r.sessionID }

func (r *resolver) reset() { r.sessionID = "" }
