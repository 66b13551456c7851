package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type CleanerOptions struct {
	Interval  time.Duration
	Retention time.Duration
	// DeadRetention, when positive, also removes events that reached
	// DeadAttempts and are older than it.
	DeadRetention time.Duration
	DeadAttempts  int

	Logger *logrus.Entry
}

// Cleaner deletes published events once they are older than Retention.
type Cleaner struct {
	db    Execer
	table pgx.Identifier
	opts  CleanerOptions
	now   func() time.Time
}

func NewCleaner(db Execer, table pgx.Identifier, opts CleanerOptions) (*Cleaner, error) {
	if db == nil {
		return nil, errors.Wrap(ErrInvalidMessage, "cleaner db is required")
	}
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if opts.Interval == 0 {
		opts.Interval = time.Minute
	}
	if opts.Retention == 0 {
		opts.Retention = 7 * 24 * time.Hour
	}
	if opts.DeadRetention > 0 && opts.DeadAttempts <= 0 {
		return nil, errors.Wrap(ErrInvalidMessage, "dead retention requires dead attempts")
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger()
	}
	return &Cleaner{db: db, table: table, opts: opts, now: time.Now}, nil
}

func (c *Cleaner) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := c.CleanOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.opts.Logger.WithError(err).WithField("table", TableLabel(c.table)).Warn("outbox: cleaner tick failed")
		}
	}
}

// CleanOnce returns the number of deleted events.
func (c *Cleaner) CleanOnce(ctx context.Context) (int64, error) {
	name := c.table.Sanitize()
	now := c.now()

	q := fmt.Sprintf(`DELETE FROM %s WHERE published_at IS NOT NULL AND published_at < $1`, name)
	tag, err := c.db.Exec(ctx, q, now.Add(-c.opts.Retention))
	if err != nil {
		return 0, errors.Wrap(err, "delete published")
	}
	deleted := tag.RowsAffected()

	if c.opts.DeadRetention > 0 {
		q := fmt.Sprintf(`DELETE FROM %s
WHERE published_at IS NULL AND attempts >= $1 AND created_at < $2`, name)
		tag, err := c.db.Exec(ctx, q, c.opts.DeadAttempts, now.Add(-c.opts.DeadRetention))
		if err != nil {
			return deleted, errors.Wrap(err, "delete dead")
		}
		deleted += tag.RowsAffected()
	}
	cleaned.WithLabelValues(TableLabel(c.table)).Add(float64(deleted))
	return deleted, nil
}
