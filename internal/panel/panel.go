// Package panel holds the stateful consumers of the state socket: the active
// game session, the default audio devices and the headset battery. Each one
// seeds itself from the HTTP API, then follows the socket and exposes its
// state through an observable.
package panel

import (
	"context"
	"log/slog"

	"github.com/nfrund/vrpanel/internal/commands"
	"github.com/nfrund/vrpanel/internal/statesync"
)

// Source is the part of statesync.Store the consumers need.
type Source interface {
	Watch(ctx context.Context, handler statesync.Handler) statesync.Unsubscribe
}

// decodeArgument decodes a command argument, logging and reporting false when
// the payload is unusable.
func decodeArgument(logger *slog.Logger, command, argument string, out any) bool {
	if err := commands.DecodeArgument(command, argument, out); err != nil {
		logger.Warn("Ignoring malformed socket payload", "command", command, "error", err)
		return false
	}
	return true
}
