package outbox

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nack struct {
	sequence int64
	lastErr  string
	next     time.Time
}

// memQueue claims like the postgres queue: due, below max attempts and
// not already published.
type memQueue struct {
	mu        sync.Mutex
	records   []Record
	published map[int64]bool
	dead      map[int64]string
	nacks     []nack
	claims    int
}

func newMemQueue(topics ...string) *memQueue {
	q := &memQueue{published: map[int64]bool{}, dead: map[int64]string{}}
	for i, topic := range topics {
		q.records = append(q.records, Record{
			Sequence: int64(i + 1),
			EventID:  uuid.New(),
			Topic:    topic,
			Payload:  []byte(`{}`),
		})
	}
	return q
}

func (q *memQueue) Label() string { return "master_outbox" }

func (q *memQueue) Claim(_ context.Context, limit, maxAttempts int, _ time.Time) ([]Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.claims++
	var out []Record
	for i := range q.records {
		r := &q.records[i]
		if q.published[r.Sequence] || r.Attempts >= maxAttempts || r.AvailableAt.After(time.Now()) {
			continue
		}
		if _, gone := q.dead[r.Sequence]; gone {
			continue
		}
		r.Attempts++
		out = append(out, *r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (q *memQueue) Ack(_ context.Context, sequence int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published[sequence] = true
	return nil
}

func (q *memQueue) Nack(_ context.Context, sequence int64, lastErr string, next time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nacks = append(q.nacks, nack{sequence, lastErr, next})
	for i := range q.records {
		if q.records[i].Sequence == sequence {
			q.records[i].AvailableAt = next
		}
	}
	return nil
}

func (q *memQueue) Dead(_ context.Context, sequence int64, lastErr string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead[sequence] = lastErr
	return nil
}

func testRelay(t *testing.T, q Queue, d Dispatcher, opts RelayOptions) *Relay {
	t.Helper()
	opts.Rand = rand.New(rand.NewSource(1))
	r, err := NewRelay(q, d, opts)
	require.NoError(t, err)
	return r
}

func TestRelay_DeliversAndAcks(t *testing.T) {
	q := newMemQueue("a", "b", "c")
	var got []int64
	d := DispatcherFunc(func(_ context.Context, rec Record) error {
		got = append(got, rec.Sequence)
		return nil
	})
	r := testRelay(t, q, d, RelayOptions{BatchSize: 2})

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, []int64{1, 2, 3}, got)
	assert.Len(t, q.published, 3)
	assert.Empty(t, q.nacks)
}

func TestRelay_RetriesWithBackoffThenGivesUp(t *testing.T) {
	q := newMemQueue("a")
	d := DispatcherFunc(func(context.Context, Record) error {
		return errors.New("downstream unavailable")
	})
	r := testRelay(t, q, d, RelayOptions{MaxAttempts: 3, JitterMax: -1, MaxBackoff: 10 * time.Second})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	for range 3 {
		// Make the nacked event due again.
		q.records[0].AvailableAt = time.Time{}
		_, err := r.RunOnce(context.Background())
		require.NoError(t, err)
	}

	require.Len(t, q.nacks, 2)
	assert.Equal(t, now.Add(time.Second), q.nacks[0].next)
	assert.Equal(t, now.Add(2*time.Second), q.nacks[1].next)
	assert.Equal(t, "downstream unavailable", q.nacks[0].lastErr)
	assert.Equal(t, "downstream unavailable", q.dead[1])
	assert.Empty(t, q.published)

	q.records[0].AvailableAt = time.Time{}
	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelay_TruncatesLastError(t *testing.T) {
	q := newMemQueue("a")
	d := DispatcherFunc(func(context.Context, Record) error {
		return errors.New("0123456789")
	})
	r := testRelay(t, q, d, RelayOptions{LastErrorMaxLen: 4})
	_, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, q.nacks, 1)
	assert.Equal(t, "0123", q.nacks[0].lastErr)
}

type stubLeader struct {
	mu       sync.Mutex
	grant    bool
	tries    int
	released bool
}

func (l *stubLeader) TryAcquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tries++
	return l.grant, nil
}

func (l *stubLeader) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
	return nil
}

func TestRelay_FollowerStaysIdle(t *testing.T) {
	q := newMemQueue("a")
	leader := &stubLeader{}
	r := testRelay(t, q, DispatcherFunc(func(context.Context, Record) error { return nil }),
		RelayOptions{PollInterval: 5 * time.Millisecond, Leader: leader})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Run(ctx), context.DeadlineExceeded)
	assert.Greater(t, leader.tries, 1)
	assert.Zero(t, q.claims)
	assert.False(t, leader.released)
}

func TestRelay_LeaderRelaysAndReleases(t *testing.T) {
	q := newMemQueue("a", "b")
	leader := &stubLeader{grant: true}
	r := testRelay(t, q, DispatcherFunc(func(context.Context, Record) error { return nil }),
		RelayOptions{PollInterval: 5 * time.Millisecond, Leader: leader})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Run(ctx), context.DeadlineExceeded)
	assert.True(t, leader.released)
	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Len(t, q.published, 2)
}

func TestNewRelay_RequiresQueueAndDispatcher(t *testing.T) {
	_, err := NewRelay(nil, DispatcherFunc(func(context.Context, Record) error { return nil }), RelayOptions{})
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = NewRelay(newMemQueue(), nil, RelayOptions{})
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestBackoff(t *testing.T) {
	assert.Zero(t, backoff(0, time.Minute))
	assert.Equal(t, time.Second, backoff(1, time.Minute))
	assert.Equal(t, 8*time.Second, backoff(4, time.Minute))
	assert.Equal(t, time.Minute, backoff(10, time.Minute))
	assert.Equal(t, time.Minute, backoff(500, time.Minute))

	assert.Zero(t, jitter(nil, time.Second))
	assert.Zero(t, jitter(rand.New(rand.NewSource(1)), 0))
	j := jitter(rand.New(rand.NewSource(1)), 10*time.Millisecond)
	assert.GreaterOrEqual(t, j, time.Duration(0))
	assert.LessOrEqual(t, j, 10*time.Millisecond)
}
