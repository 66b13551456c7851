// Package eventbus relays outbox events onto an in-process event bus.
package eventbus

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/eventbus"
	"github.com/apdn7/AnalysisPlatformCloud-sub001/pkg/outbox"
)

// Decoder turns a payload into the value subscribers expect.
type Decoder func(payload json.RawMessage) (any, error)

type Dispatcher struct {
	bus      eventbus.EventBus
	decoders map[string]Decoder
}

func New(bus eventbus.EventBus) *Dispatcher {
	return &Dispatcher{bus: bus, decoders: map[string]Decoder{}}
}

// Register makes events of topic reach subscribers as decode's result.
// Events of other topics are published as *outbox.Record.
func (d *Dispatcher) Register(topic string, decode Decoder) *Dispatcher {
	d.decoders[topic] = decode
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, rec outbox.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	decode, ok := d.decoders[rec.Topic]
	if !ok {
		d.bus.Publish(&rec)
		return nil
	}
	ev, err := decode(rec.Payload)
	if err != nil {
		return errors.Wrapf(err, "decode %s event %s", rec.Topic, rec.EventID)
	}
	d.bus.Publish(ev)
	return nil
}
