// Package outbox stores master change events in a table written in the same
// transaction as the masters, so downstream consumers never miss a change.
package outbox

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ErrInvalidMessage = errors.New("invalid outbox message")

// Message is one event to enqueue. Enqueue is idempotent on EventID.
type Message struct {
	Topic   string
	EventID uuid.UUID
	Payload json.RawMessage
}

func (m Message) validate() error {
	switch {
	case m.EventID == uuid.Nil:
		return errors.Wrap(ErrInvalidMessage, "event_id is required")
	case strings.TrimSpace(m.Topic) == "":
		return errors.Wrap(ErrInvalidMessage, "topic is required")
	case len(m.Payload) > 0 && !json.Valid(m.Payload):
		return errors.Wrapf(ErrInvalidMessage, "payload of %s is not JSON", m.EventID)
	}
	return nil
}

// Record is a stored message that has not been acknowledged yet.
type Record struct {
	Sequence    int64           `json:"sequence"`
	EventID     uuid.UUID       `json:"event_id"`
	Topic       string          `json:"topic"`
	Payload     json.RawMessage `json:"payload"`
	AvailableAt time.Time       `json:"available_at"`
	Attempts    int             `json:"attempts,omitempty"`
}

// TableLabel is the metrics label of an outbox table.
func TableLabel(table pgx.Identifier) string {
	return strings.Join(table, ".")
}

var (
	enqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nayose",
		Subsystem: "outbox",
		Name:      "enqueued_total",
		Help:      "Change events written to the outbox.",
	}, []string{"table", "topic"})
	acknowledged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nayose",
		Subsystem: "outbox",
		Name:      "acknowledged_total",
		Help:      "Outbox events marked as published.",
	}, []string{"table"})
	dispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nayose",
		Subsystem: "outbox",
		Name:      "dispatch_total",
		Help:      "Relay dispatch attempts by result.",
	}, []string{"table", "topic", "result"})
	dispatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nayose",
		Subsystem: "outbox",
		Name:      "dispatch_duration_seconds",
		Help:      "Time spent in one dispatch.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"table", "topic", "result"})
	dead = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nayose",
		Subsystem: "outbox",
		Name:      "dead_total",
		Help:      "Events that exhausted their attempts.",
	}, []string{"table", "topic"})
	relayLeader = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nayose",
		Subsystem: "outbox",
		Name:      "relay_leader",
		Help:      "1 while this process relays the table.",
	}, []string{"table"})
	cleaned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nayose",
		Subsystem: "outbox",
		Name:      "cleaned_total",
		Help:      "Events deleted by the cleaner.",
	}, []string{"table"})
)
