package ports

import (
	"context"
	"errors"
	"time"

	"github.com/kangbyounggwan/factor-telemetry/internal/domain"
)

// ErrSessionNotFound is returned when no session record exists for an id.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionConflict is returned by a guarded update when the record's
// sample count no longer matches the count the caller fetched.
var ErrSessionConflict = errors.New("session modified since fetch")

// SessionOrder controls the sort applied by ListByDevice.
type SessionOrder int

const (
	OrderStartAsc SessionOrder = iota
	OrderStartDesc
	OrderEndDesc
)

// SessionQuery narrows and orders a ListByDevice call.
type SessionQuery struct {
	// MinEndTime, when non-zero, keeps only sessions with EndTime >= it.
	MinEndTime time.Time
	Order      SessionOrder
	// Limit caps the result set; <= 0 means no limit.
	Limit int
}

// SessionUpdate is a partial write to an existing session record. A nil
// Samples slice leaves the stored samples and count untouched, which is how
// the close path bumps EndTime without a read-modify-write.
type SessionUpdate struct {
	Samples     []domain.Reading
	SampleCount int
	EndTime     time.Time
	// ExpectCount, when set, makes the update conditional on the stored
	// sample_count still matching; a mismatch yields ErrSessionConflict.
	ExpectCount *int
}

// SessionStore is the persistence gateway for session records. The backing
// store is an opaque key-addressed document store; no transactions are
// assumed beyond the optional ExpectCount guard.
type SessionStore interface {
	Fetch(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Update(ctx context.Context, id string, upd SessionUpdate) error
	ListByDevice(ctx context.Context, deviceID string, q SessionQuery) ([]*domain.Session, error)
	Delete(ctx context.Context, ids []string) error
}
