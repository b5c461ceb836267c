package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nfrund/vrpanel/internal/api"
	"github.com/nfrund/vrpanel/internal/commands"
)

// Event[T] binds a relayed command topic to the Go type of its payload.
type Event[T any] struct {
	command commands.Command
}

// NewEvent creates a typed event for a registered command. It panics when the
// command is unknown, since events are declared at package level.
func NewEvent[T any](name string) Event[T] {
	cmd, err := commands.Default().Lookup(name)
	if err != nil {
		panic(err)
	}
	return Event[T]{command: cmd}
}

// Typed events for the commands that carry a payload.
var (
	ActiveEvent            = NewEvent[api.GameSession](commands.Active)
	BatteryEvent           = NewEvent[api.AndroidBatteryInfo](commands.Battery)
	VolumeMuteChangedEvent = NewEvent[api.AudioDevice](commands.VolumeMuteChanged)
	DefaultOutputEvent     = NewEvent[api.AudioDevice](commands.DefaultOutputChanged)
	DefaultInputEvent      = NewEvent[api.AudioDevice](commands.DefaultInputChanged)
)

// Name returns the topic name.
func (e Event[T]) Name() string {
	return e.command.Topic()
}

// Publish sends a typed event. The compiler ensures 'payload' matches 'T'.
func Publish[T any](ctx context.Context, p Publisher, event Event[T], payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, Message{
		Topic:   event.Name(),
		Command: event.command.Name,
		Payload: data,
	})
}

// Subscribe delivers decoded payloads of event. Payloads that fail to decode
// are reported as handler errors.
func Subscribe[T any](ctx context.Context, s Subscriber, event Event[T], handler func(context.Context, T) error) error {
	return s.Subscribe(ctx, event.Name(), func(ctx context.Context, msg Message) error {
		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", event.command.Name, err)
		}
		return handler(ctx, payload)
	})
}
