package session

import (
	"context"
	"testing"
	"time"

	"github.com/kangbyounggwan/factor-telemetry/internal/adapters/store"
	"github.com/kangbyounggwan/factor-telemetry/internal/domain"
)

func TestHistoryMergesFiltersAndSorts(t *testing.T) {
	clk := newFakeClock()
	mem := store.NewMemStore()
	now := clk.Now()

	at := func(minsAgo int) time.Time { return now.Add(-time.Duration(minsAgo) * time.Minute) }

	// first session: one sample outside the window, two inside, stored
	// slightly out of order as a retried flush can leave them
	s1 := &domain.Session{
		ID: "s-1", DeviceID: "d1",
		StartTime: at(90), EndTime: at(40),
		Samples: []domain.Reading{
			{Timestamp: at(90), Fields: map[string]float64{"bed_actual": 55}},
			{Timestamp: at(40), Fields: map[string]float64{"bed_actual": 58}},
			{Timestamp: at(50), Fields: map[string]float64{"bed_actual": 57}},
		},
		SampleCount: 3,
	}
	s2 := &domain.Session{
		ID: "s-2", DeviceID: "d1",
		StartTime: at(20), EndTime: at(5),
		Samples: []domain.Reading{
			{Timestamp: at(20), Fields: map[string]float64{"bed_actual": 60}},
			{Timestamp: at(5), Fields: map[string]float64{"bed_actual": 61}},
		},
		SampleCount: 2,
	}
	for _, s := range []*domain.Session{s1, s2} {
		if err := mem.Create(context.Background(), s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	h := NewHistoryReader(mem, clk)
	out, err := h.History(context.Background(), "d1", time.Hour)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	if len(out) != 4 {
		t.Fatalf("expected 4 samples inside the window, got %d", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Timestamp.Before(out[i-1].Timestamp) {
			t.Fatalf("history not sorted at index %d", i)
		}
	}
	cutoff := now.Add(-time.Hour)
	for _, r := range out {
		if r.Timestamp.Before(cutoff) {
			t.Fatalf("sample %s is outside the window", r.Timestamp)
		}
	}
}

func TestHistoryExcludesSessionsEndedBeforeCutoff(t *testing.T) {
	clk := newFakeClock()
	mem := store.NewMemStore()
	now := clk.Now()

	old := &domain.Session{
		ID: "s-old", DeviceID: "d1",
		StartTime: now.Add(-5 * time.Hour), EndTime: now.Add(-4 * time.Hour),
		Samples: []domain.Reading{
			{Timestamp: now.Add(-5 * time.Hour), Fields: map[string]float64{"bed_actual": 50}},
		},
		SampleCount: 1,
	}
	if err := mem.Create(context.Background(), old); err != nil {
		t.Fatalf("seed: %v", err)
	}

	h := NewHistoryReader(mem, clk)
	out, err := h.History(context.Background(), "d1", time.Hour)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty history, got %d samples", len(out))
	}
}

func TestHistoryNoSessionsIsEmptyNotError(t *testing.T) {
	clk := newFakeClock()
	h := NewHistoryReader(store.NewMemStore(), clk)

	out, err := h.History(context.Background(), "unknown", time.Hour)
	if err != nil {
		t.Fatalf("expected no error for unknown device, got %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %d", len(out))
	}
}
