package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EventEntry is one journal row to insert.
type EventEntry struct {
	Seq           uint64
	Kind          string
	CorrelationID string
	OccurredAt    time.Time
	Payload       []byte // JSON object
}

// EventRecord is a stored journal row.
type EventRecord struct {
	ID            uuid.UUID       `json:"id"`
	Seq           int64           `json:"seq"`
	Kind          string          `json:"kind"`
	CorrelationID *string         `json:"correlation_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

const insertEventQuery = `
	INSERT INTO connectivity_events (seq, kind, correlation_id, occurred_at, payload)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5)`

func (s *Store) InsertEventBatch(ctx context.Context, entries []*EventEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, entry := range entries {
		payload := entry.Payload
		if len(payload) == 0 {
			payload = []byte("{}")
		}
		batch.Queue(insertEventQuery, int64(entry.Seq), entry.Kind, entry.CorrelationID, entry.OccurredAt, string(payload))
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert event batch: %w", err)
		}
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]EventRecord, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, seq, kind, correlation_id, occurred_at, payload, created_at
		FROM connectivity_events
		ORDER BY occurred_at DESC, seq DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Kind, &rec.CorrelationID, &rec.OccurredAt, &payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Payload = payload
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) DeleteOldEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx, "DELETE FROM connectivity_events WHERE occurred_at < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	return ct.RowsAffected(), nil
}
