package pubsub

import (
	"context"
	"log/slog"
	"time"

	"github.com/nfrund/vrpanel/internal/commands"
	"github.com/nfrund/vrpanel/internal/statesync"
)

// Metadata keys set on relayed messages.
const (
	MetaFrame      = "frame"
	MetaReceivedAt = "received_at"
)

// Source is the part of statesync.Store the relay needs.
type Source interface {
	Watch(ctx context.Context, handler statesync.Handler) statesync.Unsubscribe
}

// Relay re-publishes socket frames on per-command bus topics. A known command
// is published on its registered topic with the argument as payload; anything
// else goes to commands.UnknownTopic with the whole frame as payload.
type Relay struct {
	source   Source
	pub      Publisher
	registry *commands.Registry
	logger   *slog.Logger
	now      func() time.Time
}

// NewRelay creates a relay. A nil registry means commands.Default().
func NewRelay(source Source, pub Publisher, registry *commands.Registry) *Relay {
	if registry == nil {
		registry = commands.Default()
	}
	return &Relay{
		source:   source,
		pub:      pub,
		registry: registry,
		logger:   slog.Default().With("component", "relay"),
		now:      time.Now,
	}
}

// Start subscribes to the source until ctx is done or the returned function
// is called.
func (r *Relay) Start(ctx context.Context) statesync.Unsubscribe {
	return r.source.Watch(ctx, func(msg statesync.Message) {
		r.relay(ctx, msg)
	})
}

func (r *Relay) relay(ctx context.Context, msg statesync.Message) {
	out := r.Translate(msg)
	if err := r.pub.Publish(ctx, out); err != nil {
		r.logger.Error("Failed to publish socket frame", "topic", out.Topic, "error", err)
	}
}

// Translate maps one socket message to the bus message the relay publishes.
func (r *Relay) Translate(msg statesync.Message) Message {
	text := msg.Text()
	name, argument := msg.Command()
	out := Message{
		Topic:   commands.UnknownTopic,
		Command: name,
		Payload: []byte(text),
		Metadata: map[string]string{
			MetaFrame:      text,
			MetaReceivedAt: r.now().UTC().Format(time.RFC3339Nano),
		},
	}
	if js, isJSON := msg.(statesync.JSON); isJSON {
		if _, isString := js.Value.(string); !isString {
			out.Command = ""
			return out
		}
	}
	if cmd, ok := r.registry.Get(name); ok {
		out.Topic = cmd.Topic()
		out.Payload = []byte(argument)
	}
	return out
}
