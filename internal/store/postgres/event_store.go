package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/useQlick/qlickd/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts a single event into the append-only log. The payload is
// stored as JSONB.
func (s *EventStore) Append(ctx context.Context, ev domain.Event) error {
	payloadJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("postgres: marshal event payload: %w", err)
	}

	const query = `
		INSERT INTO engine_events (id, kind, market_id, at, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	_, err = s.pool.Exec(ctx, query,
		ev.ID, string(ev.Kind), int64(ev.MarketID), ev.At, payloadJSON,
	)
	if err != nil {
		return fmt.Errorf("postgres: append event %s: %w", ev.Kind, err)
	}
	return nil
}

// ListByMarket returns the newest events recorded for a market, most recent
// first. Payloads are returned as raw JSON maps.
func (s *EventStore) ListByMarket(ctx context.Context, marketID uint64, limit int) ([]domain.Event, error) {
	query := `SELECT id, kind, market_id, at, payload FROM engine_events
		WHERE market_id = $1 ORDER BY at DESC`
	args := []any{int64(marketID)}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events for market %d: %w", marketID, err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var kind string
		var marketID int64
		var payloadJSON []byte

		if err := rows.Scan(&ev.ID, &kind, &marketID, &ev.At, &payloadJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		ev.Kind = domain.EventKind(kind)
		ev.MarketID = uint64(marketID)

		if payloadJSON != nil {
			var payload map[string]any
			if err := json.Unmarshal(payloadJSON, &payload); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal event payload: %w", err)
			}
			ev.Payload = payload
		}

		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return events, nil
}
