package outbox

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/repo"
)

// Publisher writes and drains one outbox table through the caller's tx.
type Publisher interface {
	Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg Message) (sequence int64, err error)
	Pending(ctx context.Context, tx repo.Tx, table pgx.Identifier, limit int) ([]Record, error)
	Ack(ctx context.Context, tx repo.Tx, table pgx.Identifier, sequences []int64) (int64, error)
}

type publisher struct{}

func NewPublisher() Publisher {
	return publisher{}
}

func checkTable(table pgx.Identifier) error {
	if len(table) == 0 {
		return errors.Wrap(ErrInvalidMessage, "outbox table is required")
	}
	return nil
}

func (publisher) Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg Message) (int64, error) {
	if err := msg.validate(); err != nil {
		return 0, err
	}
	if err := checkTable(table); err != nil {
		return 0, err
	}
	payload := msg.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	q := fmt.Sprintf(`INSERT INTO %s (topic, payload, event_id, available_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (event_id) DO UPDATE SET event_id = EXCLUDED.event_id
RETURNING sequence`, table.Sanitize())

	var sequence int64
	if err := tx.QueryRow(ctx, q, msg.Topic, payload, msg.EventID).Scan(&sequence); err != nil {
		return 0, errors.Wrapf(err, "enqueue %s", msg.Topic)
	}
	enqueued.WithLabelValues(TableLabel(table), msg.Topic).Inc()
	return sequence, nil
}

// Pending returns unpublished events in sequence order, locking them so
// concurrent drains skip them.
func (publisher) Pending(ctx context.Context, tx repo.Tx, table pgx.Identifier, limit int) ([]Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, errors.Errorf("limit must be positive, got %d", limit)
	}

	q := fmt.Sprintf(`SELECT sequence, event_id, topic, payload, available_at FROM %s
WHERE published_at IS NULL AND available_at <= now()
ORDER BY sequence
LIMIT $1
FOR UPDATE SKIP LOCKED`, table.Sanitize())

	rows, err := tx.Query(ctx, q, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select pending")
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Sequence, &r.EventID, &r.Topic, &r.Payload, &r.AvailableAt); err != nil {
			return nil, errors.Wrap(err, "scan pending")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ack marks events as published and returns how many were still pending.
func (publisher) Ack(ctx context.Context, tx repo.Tx, table pgx.Identifier, sequences []int64) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	if len(sequences) == 0 {
		return 0, nil
	}

	q := fmt.Sprintf(`UPDATE %s SET published_at = now()
WHERE sequence = ANY($1) AND published_at IS NULL`, table.Sanitize())
	tag, err := tx.Exec(ctx, q, sequences)
	if err != nil {
		return 0, errors.Wrap(err, "ack")
	}
	acknowledged.WithLabelValues(TableLabel(table)).Add(float64(tag.RowsAffected()))
	return tag.RowsAffected(), nil
}
