// Package redis relays outbox events to Redis pub/sub channels named
// after their topic.
package redis

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/outbox"
)

// Envelope is the published message.
type Envelope struct {
	EventID  string          `json:"event_id"`
	Sequence int64           `json:"sequence"`
	Topic    string          `json:"topic"`
	Payload  json.RawMessage `json:"payload"`
}

type Dispatcher struct {
	client redis.UniversalClient
	prefix string
}

func New(client redis.UniversalClient, channelPrefix string) *Dispatcher {
	return &Dispatcher{client: client, prefix: channelPrefix}
}

func (d *Dispatcher) Channel(topic string) string {
	return d.prefix + topic
}

func (d *Dispatcher) Dispatch(ctx context.Context, rec outbox.Record) error {
	body, err := json.Marshal(Envelope{
		EventID:  rec.EventID.String(),
		Sequence: rec.Sequence,
		Topic:    rec.Topic,
		Payload:  rec.Payload,
	})
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	if err := d.client.Publish(ctx, d.Channel(rec.Topic), body).Err(); err != nil {
		return errors.Wrapf(err, "publish %s", rec.Topic)
	}
	return nil
}
