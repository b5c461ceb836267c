package statesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the connectivity state of a Store's socket.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Handler receives every decoded frame. Handlers run on the connection's
// reader goroutine and should return quickly.
type Handler func(Message)

// Unsubscribe removes a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

const (
	// DefaultReconnectDelay is the wait after an unexpected close before the
	// socket is reopened.
	DefaultReconnectDelay = 3 * time.Second
	// DefaultDialTimeout bounds a single connection attempt.
	DefaultDialTimeout = 10 * time.Second
)

type subscriber struct {
	id      string
	handler Handler
}

// Store owns one socket connection to the appliance's state endpoint and
// fans every inbound frame out to its subscribers. The connection is opened
// when the first subscriber arrives and closed when the last one leaves;
// unexpected closes are retried after a fixed delay while subscribers remain.
type Store struct {
	url            string
	dialer         Dialer
	reconnectDelay time.Duration
	dialTimeout    time.Duration
	logger         *slog.Logger

	mu          sync.Mutex
	state       State
	conn        Conn
	gen         uint64 // bumped by every connect and disconnect
	cancelDial  context.CancelFunc
	timer       *time.Timer
	subscribers map[*subscriber]struct{}
	last        Message
}

// Option configures a Store.
type Option func(*Store)

// WithDialer replaces the default coder/websocket dialer.
func WithDialer(d Dialer) Option {
	return func(s *Store) {
		if d != nil {
			s.dialer = d
		}
	}
}

// WithReconnectDelay sets the fixed delay before a reconnect attempt.
func WithReconnectDelay(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.reconnectDelay = d
		}
	}
}

// WithDialTimeout bounds each connection attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.dialTimeout = d
		}
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store for the socket at url. No connection is made until the
// first Subscribe.
func New(url string, opts ...Option) *Store {
	s := &Store{
		url:            url,
		dialer:         &CoderDialer{},
		reconnectDelay: DefaultReconnectDelay,
		dialTimeout:    DefaultDialTimeout,
		logger:         slog.Default(),
		subscribers:    make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "statesync", "url", url)
	return s
}

// Subscribe registers handler for every subsequent frame and returns the
// function that removes it. The first subscriber opens the connection; the
// removal of the last one closes it.
func (s *Store) Subscribe(handler Handler) Unsubscribe {
	sub := &subscriber{id: uuid.NewString(), handler: handler}

	s.mu.Lock()
	s.subscribers[sub] = struct{}{}
	count := len(s.subscribers)
	if count == 1 {
		s.connectLocked()
	}
	s.mu.Unlock()

	s.logger.Debug("Subscriber registered", "subscriberID", sub.id, "total_subscribers", count)

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(sub) })
	}
}

func (s *Store) unsubscribe(sub *subscriber) {
	s.mu.Lock()
	if _, ok := s.subscribers[sub]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.subscribers, sub)
	count := len(s.subscribers)
	if count == 0 {
		s.disconnectLocked()
	}
	s.mu.Unlock()

	s.logger.Debug("Subscriber unregistered", "subscriberID", sub.id, "total_subscribers", count)
}

// Connect opens the connection unless one is already open or being opened.
// It returns immediately; the dial happens in the background.
func (s *Store) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectLocked()
}

// Disconnect cancels any pending reconnect and closes the connection. It is
// idempotent and does not remove subscribers.
func (s *Store) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectLocked()
}

// Close removes every subscriber and disconnects.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.subscribers)
	s.disconnectLocked()
}

// State reports the current connectivity state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the socket is open.
func (s *Store) IsConnected() bool {
	return s.State() == Open
}

// Subscribers returns the number of registered subscribers.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}

// ReconnectPending reports whether a reconnect attempt is scheduled.
func (s *Store) ReconnectPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// LastMessage returns the most recently received frame. ok is false until
// the first frame arrives.
func (s *Store) LastMessage() (msg Message, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last != nil
}

func (s *Store) connectLocked() {
	if s.state == Open || s.state == Connecting {
		return
	}
	s.stopTimerLocked()

	s.gen++
	gen := s.gen
	s.state = Connecting

	ctx, cancel := context.WithTimeout(context.Background(), s.dialTimeout)
	s.cancelDial = cancel
	go s.dial(ctx, cancel, gen)
}

func (s *Store) dial(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer cancel()
	conn, err := s.dialer.Dial(ctx, s.url)

	s.mu.Lock()
	if gen != s.gen {
		// Disconnected (or superseded) while dialing.
		s.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	s.cancelDial = nil
	if err != nil {
		s.state = Disconnected
		s.scheduleReconnectLocked()
		s.mu.Unlock()
		s.logger.Error("State socket connection failed", "error", err)
		return
	}
	s.conn = conn
	s.state = Open
	s.mu.Unlock()

	s.logger.Info("State socket connected")
	go s.readLoop(conn, gen)
}

func (s *Store) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			s.handleClose(conn, gen, err)
			return
		}
		s.dispatch(gen, Decode(string(data)))
	}
}

// dispatch broadcasts msg to a snapshot of the subscriber set. No lock is
// held while handlers run, so they may subscribe or unsubscribe.
func (s *Store) dispatch(gen uint64, msg Message) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.last = msg
	subs := make([]*subscriber, 0, len(s.subscribers))
	for sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		s.deliver(sub, msg)
	}
}

func (s *Store) deliver(sub *subscriber, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Error in state socket message handler", "subscriberID", sub.id, "panic", r)
		}
	}()
	sub.handler(msg)
}

func (s *Store) handleClose(conn Conn, gen uint64, err error) {
	_ = conn.Close()

	s.mu.Lock()
	if gen != s.gen {
		// Closed deliberately by disconnect.
		s.mu.Unlock()
		return
	}
	wasOpen := s.state == Open
	s.conn = nil
	s.state = Disconnected
	if wasOpen {
		s.scheduleReconnectLocked()
	}
	pending := s.timer != nil
	s.mu.Unlock()

	if isNormalClosure(err) {
		s.logger.Info("State socket disconnected", "reconnect_scheduled", pending)
	} else {
		s.logger.Error("State socket error", "error", err, "reconnect_scheduled", pending)
	}
}

func (s *Store) scheduleReconnectLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	s.stopTimerLocked()
	gen := s.gen
	s.timer = time.AfterFunc(s.reconnectDelay, func() { s.reconnect(gen) })
}

func (s *Store) reconnect(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.timer == nil {
		return
	}
	s.timer = nil
	if len(s.subscribers) == 0 {
		return
	}
	s.logger.Info("Attempting to reconnect state socket")
	s.connectLocked()
}

func (s *Store) disconnectLocked() {
	s.stopTimerLocked()
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	s.gen++

	conn := s.conn
	s.conn = nil
	if conn == nil {
		s.state = Disconnected
		return
	}

	s.state = Closing
	gen := s.gen
	go func() {
		if err := conn.Close(); err != nil {
			s.logger.Debug("State socket close returned error", "error", err)
		}
		s.mu.Lock()
		if s.gen == gen && s.state == Closing {
			s.state = Disconnected
		}
		s.mu.Unlock()
		s.logger.Info("State socket closed")
	}()
}

func (s *Store) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
