package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type recordingExecer struct {
	calls []execCall
	tags  []string
}

func (e *recordingExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.calls = append(e.calls, execCall{sql, args})
	tag := e.tags[0]
	e.tags = e.tags[1:]
	return pgconn.NewCommandTag(tag), nil
}

func TestCleaner_DeletesPublishedAndDead(t *testing.T) {
	db := &recordingExecer{tags: []string{"DELETE 3", "DELETE 1"}}
	c, err := NewCleaner(db, pgx.Identifier{"master_outbox"}, CleanerOptions{
		Retention:     time.Hour,
		DeadRetention: 24 * time.Hour,
		DeadAttempts:  25,
	})
	require.NoError(t, err)
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	n, err := c.CleanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	require.Len(t, db.calls, 2)
	assert.Contains(t, db.calls[0].sql, `DELETE FROM "master_outbox" WHERE published_at IS NOT NULL`)
	assert.Equal(t, []any{now.Add(-time.Hour)}, db.calls[0].args)
	assert.Contains(t, db.calls[1].sql, "attempts >= $1")
	assert.Equal(t, []any{25, now.Add(-24 * time.Hour)}, db.calls[1].args)
}

func TestCleaner_KeepsDeadByDefault(t *testing.T) {
	db := &recordingExecer{tags: []string{"DELETE 0"}}
	c, err := NewCleaner(db, pgx.Identifier{"master_outbox"}, CleanerOptions{})
	require.NoError(t, err)
	_, err = c.CleanOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, db.calls, 1)
}

func TestNewCleaner_Validates(t *testing.T) {
	_, err := NewCleaner(nil, pgx.Identifier{"master_outbox"}, CleanerOptions{})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = NewCleaner(&recordingExecer{}, nil, CleanerOptions{})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = NewCleaner(&recordingExecer{}, pgx.Identifier{"master_outbox"}, CleanerOptions{DeadRetention: time.Hour})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestAdvisoryLockKey_IsStablePerTable(t *testing.T) {
	a := AdvisoryLockKey("outbox:master_outbox")
	assert.Equal(t, a, AdvisoryLockKey("outbox:master_outbox"))
	assert.NotEqual(t, a, AdvisoryLockKey("outbox:public.master_outbox"))
}
