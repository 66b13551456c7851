package outbox

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	Execer
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// PostgresQueue is the Queue of one outbox table.
type PostgresQueue struct {
	db    DB
	table pgx.Identifier
}

func NewPostgresQueue(db DB, table pgx.Identifier) (*PostgresQueue, error) {
	if db == nil {
		return nil, errors.Wrap(ErrInvalidMessage, "queue db is required")
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}
	return &PostgresQueue{db: db, table: table}, nil
}

func (q *PostgresQueue) Label() string {
	return TableLabel(q.table)
}

func (q *PostgresQueue) Claim(ctx context.Context, limit, maxAttempts int, lockCutoff time.Time) ([]Record, error) {
	tx, err := q.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin claim")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	name := q.table.Sanitize()
	now := time.Now()
	rows, err := tx.Query(ctx, fmt.Sprintf(`SELECT sequence, event_id, topic, payload, available_at, attempts FROM %s
WHERE published_at IS NULL
  AND available_at <= $1
  AND attempts < $2
  AND (locked_at IS NULL OR locked_at < $3)
ORDER BY available_at, sequence
LIMIT $4
FOR UPDATE SKIP LOCKED`, name), now, maxAttempts, lockCutoff, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select claimable")
	}
	var (
		out  []Record
		seqs []int64
	)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Sequence, &r.EventID, &r.Topic, &r.Payload, &r.AvailableAt, &r.Attempts); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan claimable")
		}
		r.Attempts++
		out = append(out, r)
		seqs = append(seqs, r.Sequence)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "claimable rows")
	}
	if len(seqs) > 0 {
		update := fmt.Sprintf(`UPDATE %s SET locked_at = $1, attempts = attempts + 1 WHERE sequence = ANY($2)`, name)
		if _, err := tx.Exec(ctx, update, now, seqs); err != nil {
			return nil, errors.Wrap(err, "lock claimed")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit claim")
	}
	return out, nil
}

func (q *PostgresQueue) Ack(ctx context.Context, sequence int64) error {
	if _, err := q.db.Exec(ctx, fmt.Sprintf(`UPDATE %s
SET published_at = now(), locked_at = NULL, last_error = NULL
WHERE sequence = $1 AND published_at IS NULL`, q.table.Sanitize()), sequence); err != nil {
		return errors.Wrapf(err, "ack %d", sequence)
	}
	return nil
}

func (q *PostgresQueue) Nack(ctx context.Context, sequence int64, lastError string, next time.Time) error {
	if _, err := q.db.Exec(ctx, fmt.Sprintf(`UPDATE %s
SET locked_at = NULL, last_error = $2, available_at = $3
WHERE sequence = $1 AND published_at IS NULL`, q.table.Sanitize()), sequence, lastError, next); err != nil {
		return errors.Wrapf(err, "nack %d", sequence)
	}
	return nil
}

func (q *PostgresQueue) Dead(ctx context.Context, sequence int64, lastError string) error {
	if _, err := q.db.Exec(ctx, fmt.Sprintf(`UPDATE %s
SET locked_at = NULL, last_error = $2
WHERE sequence = $1 AND published_at IS NULL`, q.table.Sanitize()), sequence, lastError); err != nil {
		return errors.Wrapf(err, "mark %d dead", sequence)
	}
	return nil
}

// AdvisoryLeader holds a session advisory lock keyed by the outbox table
// on a dedicated connection.
type AdvisoryLeader struct {
	pool *pgxpool.Pool
	key  int64
	conn *pgxpool.Conn
}

func NewAdvisoryLeader(pool *pgxpool.Pool, table pgx.Identifier) *AdvisoryLeader {
	return &AdvisoryLeader{pool: pool, key: AdvisoryLockKey("outbox:" + TableLabel(table))}
}

func (l *AdvisoryLeader) TryAcquire(ctx context.Context) (bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, errors.Wrap(err, "acquire leader conn")
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, l.key).Scan(&ok); err != nil {
		conn.Release()
		return false, errors.Wrap(err, "try advisory lock")
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *AdvisoryLeader) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Release()
		l.conn = nil
	}()
	var ok bool
	if err := l.conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1::bigint)`, l.key).Scan(&ok); err != nil {
		return errors.Wrap(err, "advisory unlock")
	}
	return nil
}

// AdvisoryLockKey hashes s into a bigint lock key.
func AdvisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
