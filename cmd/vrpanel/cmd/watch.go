package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nfrund/vrpanel/internal/api"
	"github.com/nfrund/vrpanel/internal/commands"
	"github.com/nfrund/vrpanel/internal/pubsub"
	"github.com/nfrund/vrpanel/internal/statesync"
)

var watchCommandFlags []string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print every frame from the appliance's state socket",
	Long: `Watch subscribes to the state socket and prints each frame as it arrives.
The connection is re-established automatically if the appliance drops it.

With --command, frames are routed through the in-process event bus and only
the named commands are printed, one line per event with its payload decoded.
Bus tracing is enabled with VRPANEL_TRACING_ENABLED=true.

Examples:
  vrpanel watch
  vrpanel watch --command battery --command active`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(watchCommandFlags) == 0 {
			return follow(cmd, func(ctx context.Context, store *statesync.Store) (statesync.Unsubscribe, error) {
				return store.Watch(ctx, func(msg statesync.Message) {
					fmt.Fprintln(out, msg.Text())
				}), nil
			})
		}

		names := make([]string, 0, len(watchCommandFlags))
		for _, name := range watchCommandFlags {
			c, err := commands.Default().Lookup(name)
			if err != nil {
				return err
			}
			names = append(names, c.Name)
		}

		return follow(cmd, func(ctx context.Context, store *statesync.Store) (statesync.Unsubscribe, error) {
			tracer, shutdown, err := pubsub.SetupOTel(ctx, pubsub.LoadTracingConfigFromEnv())
			if err != nil {
				return nil, fmt.Errorf("setup tracing: %w", err)
			}
			bus := pubsub.NewWatermillBridge(pubsub.WithTracer(tracer))

			stop, err := watchCommands(ctx, store, bus, names, out)
			if err != nil {
				_ = bus.Close()
				shutdown()
				return nil, err
			}
			return func() {
				stop()
				if err := bus.Close(); err != nil {
					slog.Warn("Failed to close event bus", "error", err)
				}
				shutdown()
			}, nil
		})
	},
}

// deviceEvents are the commands whose payload is an audio device.
var deviceEvents = map[string]pubsub.Event[api.AudioDevice]{
	commands.VolumeMuteChanged:    pubsub.VolumeMuteChangedEvent,
	commands.DefaultOutputChanged: pubsub.DefaultOutputEvent,
	commands.DefaultInputChanged:  pubsub.DefaultInputEvent,
}

// watchCommands subscribes to the named commands on bus, then relays src
// onto it. Each event is printed to out as one line.
func watchCommands(ctx context.Context, src pubsub.Source, bus *pubsub.WatermillBridge, names []string, out io.Writer) (statesync.Unsubscribe, error) {
	for _, name := range names {
		if err := subscribeCommand(ctx, bus, name, out); err != nil {
			return nil, err
		}
	}
	return pubsub.NewRelay(src, bus, commands.Default()).Start(ctx), nil
}

func subscribeCommand(ctx context.Context, bus pubsub.Subscriber, name string, out io.Writer) error {
	if event, ok := deviceEvents[name]; ok {
		return pubsub.Subscribe(ctx, bus, event, func(_ context.Context, d api.AudioDevice) error {
			fmt.Fprintf(out, "%s %d %s volume=%d%% muted=%t\n", name, d.ID, d.Description, d.Volume, d.IsMuted)
			return nil
		})
	}

	switch name {
	case commands.Active:
		return pubsub.Subscribe(ctx, bus, pubsub.ActiveEvent, func(_ context.Context, s api.GameSession) error {
			fmt.Fprintf(out, "%s %s (%s) on %s\n", name, s.Game.Title, s.Game.ID, s.VRDeviceSerial)
			return nil
		})
	case commands.Battery:
		return pubsub.Subscribe(ctx, bus, pubsub.BatteryEvent, func(_ context.Context, info api.AndroidBatteryInfo) error {
			fmt.Fprintf(out, "%s %s\n", name, batteryLine(&info))
			return nil
		})
	}

	c, err := commands.Default().Lookup(name)
	if err != nil {
		return err
	}
	return bus.Subscribe(ctx, c.Topic(), func(_ context.Context, msg pubsub.Message) error {
		fmt.Fprintln(out, msg.Command)
		return nil
	})
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringArrayVarP(&watchCommandFlags, "command", "c", nil, "only print these commands (repeatable)")
}
