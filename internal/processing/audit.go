package processing

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ProcessedEvent is the durable audit record of one handled message.
type ProcessedEvent struct {
	MessageID     string
	MessageType   string
	CorrelationID string
	OrderID       string
	ProcessedAt   time.Time
}

type AuditStore interface {
	Record(ctx context.Context, event ProcessedEvent) error
	ListRecent(ctx context.Context, limit int) ([]ProcessedEvent, error)
}

type PostgresAuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *PostgresAuditStore {
	return &PostgresAuditStore{db: db}
}

// Record inserts the audit row. Replays of the same message id are
// ignored; the first processing wins.
func (s *PostgresAuditStore) Record(ctx context.Context, event ProcessedEvent) error {
	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO processed_events (message_id, message_type, correlation_id, order_id, processed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (message_id) DO NOTHING
	`, event.MessageID, event.MessageType, event.CorrelationID, event.OrderID, event.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to record processed event: %w", err)
	}
	return nil
}

func (s *PostgresAuditStore) ListRecent(ctx context.Context, limit int) ([]ProcessedEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, message_type, correlation_id, order_id, processed_at
		FROM processed_events
		ORDER BY processed_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed events: %w", err)
	}
	defer rows.Close()

	var events []ProcessedEvent
	for rows.Next() {
		var e ProcessedEvent
		if err := rows.Scan(&e.MessageID, &e.MessageType, &e.CorrelationID, &e.OrderID, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan processed event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
