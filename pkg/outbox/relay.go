package outbox

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

// Queue is the storage side of a Relay. Claim locks up to limit due events
// that have been tried fewer than maxAttempts times and bumps their attempt
// count; events locked before lockCutoff are claimable again.
type Queue interface {
	Label() string
	Claim(ctx context.Context, limit, maxAttempts int, lockCutoff time.Time) ([]Record, error)
	Ack(ctx context.Context, sequence int64) error
	Nack(ctx context.Context, sequence int64, lastError string, next time.Time) error
	Dead(ctx context.Context, sequence int64, lastError string) error
}

// Dispatcher delivers one claimed event downstream.
type Dispatcher interface {
	Dispatch(ctx context.Context, rec Record) error
}

type DispatcherFunc func(ctx context.Context, rec Record) error

func (f DispatcherFunc) Dispatch(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Leader elects one active relay per outbox table.
type Leader interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type RelayOptions struct {
	PollInterval    time.Duration
	BatchSize       int
	LockTTL         time.Duration
	MaxAttempts     int
	MaxBackoff      time.Duration
	JitterMax       time.Duration
	LastErrorMaxLen int
	DispatchTimeout time.Duration

	// Leader, when set, keeps all but one relay idle.
	Leader Leader
	Logger *logrus.Entry
	Rand   *rand.Rand
}

func (o *RelayOptions) setDefaults() {
	if o.PollInterval == 0 {
		o.PollInterval = time.Second
	}
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.LockTTL == 0 {
		o.LockTTL = time.Minute
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 25
	}
	if o.MaxBackoff == 0 {
		o.MaxBackoff = time.Minute
	}
	if o.JitterMax == 0 {
		o.JitterMax = 200 * time.Millisecond
	}
	if o.LastErrorMaxLen == 0 {
		o.LastErrorMaxLen = 2048
	}
	if o.DispatchTimeout == 0 {
		o.DispatchTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = nopLogger()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
}

// Relay moves outbox events to a Dispatcher. Failed events are retried
// with exponential backoff until MaxAttempts, then left as dead.
type Relay struct {
	queue      Queue
	dispatcher Dispatcher
	opts       RelayOptions
	now        func() time.Time
}

func NewRelay(queue Queue, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if queue == nil {
		return nil, errors.Wrap(ErrInvalidMessage, "relay queue is required")
	}
	if dispatcher == nil {
		return nil, errors.Wrap(ErrInvalidMessage, "relay dispatcher is required")
	}
	opts.setDefaults()
	return &Relay{queue: queue, dispatcher: dispatcher, opts: opts, now: time.Now}, nil
}

// Run polls until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	if r.opts.Leader == nil {
		relayLeader.WithLabelValues(r.queue.Label()).Set(1)
		return r.loop(ctx)
	}
	for {
		ok, err := r.opts.Leader.TryAcquire(ctx)
		if err != nil {
			r.opts.Logger.WithError(err).Warn("outbox: leader election failed")
		}
		if ok {
			relayLeader.WithLabelValues(r.queue.Label()).Set(1)
			r.opts.Logger.WithField("table", r.queue.Label()).Info("outbox: relay became leader")
			err := r.loop(ctx)
			if relErr := r.opts.Leader.Release(context.WithoutCancel(ctx)); relErr != nil {
				r.opts.Logger.WithError(relErr).Warn("outbox: release leader failed")
			}
			relayLeader.WithLabelValues(r.queue.Label()).Set(0)
			return err
		}
		relayLeader.WithLabelValues(r.queue.Label()).Set(0)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.opts.PollInterval):
		}
	}
}

func (r *Relay) loop(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := r.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("outbox: relay tick failed")
		}
	}
}

// RunOnce claims one batch and dispatches it, returning how many events
// were delivered.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	now := r.now()
	claimed, err := r.queue.Claim(ctx, r.opts.BatchSize, r.opts.MaxAttempts, now.Add(-r.opts.LockTTL))
	if err != nil {
		return 0, errors.Wrap(err, "claim")
	}

	delivered := 0
	label := r.queue.Label()
	for _, rec := range claimed {
		dispatchCtx, cancel := context.WithTimeout(ctx, r.opts.DispatchTimeout)
		start := time.Now()
		err := r.dispatcher.Dispatch(dispatchCtx, rec)
		cancel()
		result := "success"
		if err != nil {
			result = "failure"
		}
		dispatched.WithLabelValues(label, rec.Topic, result).Inc()
		dispatchLatency.WithLabelValues(label, rec.Topic, result).Observe(time.Since(start).Seconds())

		log := r.opts.Logger.WithFields(logrus.Fields{
			"table":    label,
			"topic":    rec.Topic,
			"event_id": rec.EventID.String(),
			"sequence": rec.Sequence,
			"attempts": rec.Attempts,
		})
		if err == nil {
			if ackErr := r.queue.Ack(ctx, rec.Sequence); ackErr != nil {
				log.WithError(ackErr).Warn("outbox: ack failed")
				continue
			}
			acknowledged.WithLabelValues(label).Inc()
			delivered++
			continue
		}

		lastErr := truncateError(err, r.opts.LastErrorMaxLen)
		if rec.Attempts >= r.opts.MaxAttempts {
			dead.WithLabelValues(label, rec.Topic).Inc()
			log.WithError(err).Error("outbox: event gave up")
			if deadErr := r.queue.Dead(ctx, rec.Sequence, lastErr); deadErr != nil {
				log.WithError(deadErr).Warn("outbox: dead update failed")
			}
			continue
		}
		next := r.now().Add(backoff(rec.Attempts, r.opts.MaxBackoff) + jitter(r.opts.Rand, r.opts.JitterMax))
		log.WithError(err).WithField("retry_at", next).Warn("outbox: dispatch failed")
		if nackErr := r.queue.Nack(ctx, rec.Sequence, lastErr, next); nackErr != nil {
			log.WithError(nackErr).Warn("outbox: nack failed")
		}
	}
	return delivered, nil
}

func truncateError(err error, maxLen int) string {
	s := err.Error()
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
