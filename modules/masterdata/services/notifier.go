package services

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/composables"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/eventbus"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/outbox"
)

// TopicMasterDataChanged is the outbox topic of MasterDataChanged.
const TopicMasterDataChanged = "nayose.master_data_changed"

// MasterDataChanged is published after rows were inserted into a master.
type MasterDataChanged struct {
	Table string  `json:"table"`
	IDs   []int64 `json:"ids"`
	RunID string  `json:"run_id,omitempty"`
}

// DecodeMasterDataChanged reads an outbox payload of TopicMasterDataChanged.
func DecodeMasterDataChanged(payload json.RawMessage) (any, error) {
	ev := &MasterDataChanged{}
	if err := json.Unmarshal(payload, ev); err != nil {
		return nil, errors.Wrap(err, "decode master data change")
	}
	if ev.Table == "" {
		return nil, errors.New("master data change without table")
	}
	return ev, nil
}

// Notifier fans change events out to in-process subscribers and, when an
// outbox table is configured, to the transactional outbox.
type Notifier struct {
	bus         eventbus.EventBus
	publisher   outbox.Publisher
	outboxTable pgx.Identifier
}

type NotifierOption func(*Notifier)

// WithOutbox enqueues every event into table inside the caller's transaction.
func WithOutbox(p outbox.Publisher, table pgx.Identifier) NotifierOption {
	return func(n *Notifier) {
		n.publisher = p
		n.outboxTable = table
	}
}

func NewNotifier(bus eventbus.EventBus, opts ...NotifierOption) *Notifier {
	n := &Notifier{bus: bus}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *Notifier) Notify(ctx context.Context, table string, ids []int64) error {
	if n == nil || len(ids) == 0 {
		return nil
	}
	ev := &MasterDataChanged{Table: table, IDs: ids, RunID: composables.UseRunID(ctx)}
	if n.publisher != nil {
		if err := n.enqueue(ctx, ev); err != nil {
			return err
		}
	}
	if n.bus != nil {
		n.bus.Publish(ev)
	}
	return nil
}

func (n *Notifier) enqueue(ctx context.Context, ev *MasterDataChanged) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "outbox tx")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal change event")
	}
	seq, err := n.publisher.Enqueue(ctx, tx, n.outboxTable, outbox.Message{
		Topic:   TopicMasterDataChanged,
		EventID: uuid.New(),
		Payload: payload,
	})
	if err != nil {
		return errors.Wrapf(err, "enqueue %s change", ev.Table)
	}
	logWithFields(ctx, logrus.DebugLevel, "nayose.outbox.enqueued", logrus.Fields{
		"table":    ev.Table,
		"sequence": seq,
	})
	return nil
}
