package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/kangbyounggwan/factor-telemetry/internal/domain"
	"github.com/kangbyounggwan/factor-telemetry/internal/ports"
)

// PostgresStore keeps one row per session with the sample array as JSONB.
//
// Expected schema:
//
//	CREATE TABLE sessions (
//	    id           UUID PRIMARY KEY,
//	    device_id    TEXT NOT NULL,
//	    start_time   TIMESTAMPTZ NOT NULL,
//	    end_time     TIMESTAMPTZ NOT NULL,
//	    samples      JSONB NOT NULL DEFAULT '[]',
//	    sample_count INT NOT NULL DEFAULT 0
//	);
type PostgresStore struct {
	db        *sql.DB
	tableName string
}

func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	return &PostgresStore{db: db, tableName: table}
}

func (p *PostgresStore) Fetch(ctx context.Context, id string) (*domain.Session, error) {
	row := p.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, device_id, start_time, end_time, samples, sample_count FROM %s WHERE id = $1", p.tableName),
		id)

	var (
		s   domain.Session
		raw []byte
	)
	if err := row.Scan(&s.ID, &s.DeviceID, &s.StartTime, &s.EndTime, &raw, &s.SampleCount); err != nil {
		if err == sql.ErrNoRows {
			return nil, ports.ErrSessionNotFound
		}
		return nil, fmt.Errorf("fetch session %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, &s.Samples); err != nil {
		return nil, fmt.Errorf("decode samples for session %s: %w", id, err)
	}
	return &s, nil
}

func (p *PostgresStore) Create(ctx context.Context, s *domain.Session) error {
	raw, err := json.Marshal(samplesOrEmpty(s.Samples))
	if err != nil {
		return fmt.Errorf("marshal samples: %w", err)
	}

	_, err = p.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, device_id, start_time, end_time, samples, sample_count) VALUES ($1,$2,$3,$4,$5,$6)", p.tableName),
		s.ID, s.DeviceID, s.StartTime, s.EndTime, raw, s.SampleCount)
	if err != nil {
		return fmt.Errorf("create session %s: %w", s.ID, err)
	}
	return nil
}

func (p *PostgresStore) Update(ctx context.Context, id string, upd ports.SessionUpdate) error {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString("UPDATE ")
	b.WriteString(p.tableName)
	b.WriteString(" SET end_time = $1")
	args = append(args, upd.EndTime)

	if upd.Samples != nil {
		raw, err := json.Marshal(upd.Samples)
		if err != nil {
			return fmt.Errorf("marshal samples: %w", err)
		}
		b.WriteString(fmt.Sprintf(", samples = $%d, sample_count = $%d", len(args)+1, len(args)+2))
		args = append(args, raw, upd.SampleCount)
	}

	b.WriteString(fmt.Sprintf(" WHERE id = $%d", len(args)+1))
	args = append(args, id)

	if upd.ExpectCount != nil {
		b.WriteString(fmt.Sprintf(" AND sample_count = $%d", len(args)+1))
		args = append(args, *upd.ExpectCount)
	}

	res, err := p.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	if n == 0 {
		if upd.ExpectCount != nil {
			return ports.ErrSessionConflict
		}
		return ports.ErrSessionNotFound
	}
	return nil
}

func (p *PostgresStore) ListByDevice(ctx context.Context, deviceID string, q ports.SessionQuery) ([]*domain.Session, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString("SELECT id, device_id, start_time, end_time, samples, sample_count FROM ")
	b.WriteString(p.tableName)
	b.WriteString(" WHERE device_id = $1")
	args = append(args, deviceID)

	if !q.MinEndTime.IsZero() {
		b.WriteString(fmt.Sprintf(" AND end_time >= $%d", len(args)+1))
		args = append(args, q.MinEndTime)
	}

	switch q.Order {
	case ports.OrderStartDesc:
		b.WriteString(" ORDER BY start_time DESC")
	case ports.OrderEndDesc:
		b.WriteString(" ORDER BY end_time DESC")
	default:
		b.WriteString(" ORDER BY start_time ASC")
	}

	if q.Limit > 0 {
		b.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)+1))
		args = append(args, q.Limit)
	}

	rows, err := p.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", deviceID, err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		var (
			s   domain.Session
			raw []byte
		)
		if err := rows.Scan(&s.ID, &s.DeviceID, &s.StartTime, &s.EndTime, &raw, &s.SampleCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal(raw, &s.Samples); err != nil {
			return nil, fmt.Errorf("decode samples for session %s: %w", s.ID, err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", deviceID, err)
	}
	return out, nil
}

func (p *PostgresStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", p.tableName),
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("delete %d sessions: %w", len(ids), err)
	}
	return nil
}

func samplesOrEmpty(s []domain.Reading) []domain.Reading {
	if s == nil {
		return []domain.Reading{}
	}
	return s
}

var _ ports.SessionStore = (*PostgresStore)(nil)
