package panel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfrund/vrpanel/internal/api"
	"github.com/nfrund/vrpanel/internal/commands"
	"github.com/nfrund/vrpanel/internal/observable"
	"github.com/nfrund/vrpanel/internal/statesync"
)

// SessionAPI is the part of api.Client the tracker uses.
type SessionAPI interface {
	GetActiveGame(ctx context.Context) (*api.GameSession, error)
}

// SessionTracker follows the running game session. The observable holds nil
// while nothing is running.
type SessionTracker struct {
	api     SessionAPI
	session *observable.Observable[*api.GameSession]
	logger  *slog.Logger

	mu     sync.Mutex
	frames uint64
}

// NewSessionTracker creates a tracker with no session.
func NewSessionTracker(a SessionAPI) *SessionTracker {
	return &SessionTracker{
		api:     a,
		session: observable.New[*api.GameSession](nil),
		logger:  slog.Default().With("component", "session"),
	}
}

// Session exposes the tracked session.
func (t *SessionTracker) Session() *observable.Observable[*api.GameSession] {
	return t.session
}

// Current returns the running session, or nil.
func (t *SessionTracker) Current() *api.GameSession {
	return t.session.Get()
}

// Start subscribes to src and seeds the session from the API. The
// subscription is made first so no change is missed while seeding; a seed
// that returns after a socket update is discarded.
func (t *SessionTracker) Start(ctx context.Context, src Source) (statesync.Unsubscribe, error) {
	unsubscribe := src.Watch(ctx, t.Handle)

	t.mu.Lock()
	before := t.frames
	t.mu.Unlock()

	session, err := t.api.GetActiveGame(ctx)
	if err != nil {
		unsubscribe()
		return nil, fmt.Errorf("seed active session: %w", err)
	}

	t.mu.Lock()
	stale := t.frames != before
	t.mu.Unlock()
	if !stale {
		t.session.Set(session)
	}
	return unsubscribe, nil
}

// Handle applies one socket message.
func (t *SessionTracker) Handle(msg statesync.Message) {
	command, argument := msg.Command()
	switch command {
	case commands.Active:
		var session api.GameSession
		if !decodeArgument(t.logger, command, argument, &session) {
			return
		}
		t.touch()
		t.session.Set(&session)
	case commands.Inactive:
		t.touch()
		t.session.Set(nil)
	}
}

func (t *SessionTracker) touch() {
	t.mu.Lock()
	t.frames++
	t.mu.Unlock()
}
