// Package observable provides a single-value reactive cell with fan-out to
// listeners. It has no connection to the socket lifecycle; consumers use it to
// hand a narrow slice of events to exactly the code that cares about them.
package observable

import (
	"log/slog"
	"sync"
)

// Unsubscribe removes a listener. Calling it more than once is a no-op.
type Unsubscribe func()

type listener[T any] struct {
	fn func(T)
}

// Observable holds a current value and notifies listeners on every Set.
type Observable[T any] struct {
	setMu     sync.Mutex
	mu        sync.RWMutex
	value     T
	listeners map[*listener[T]]struct{}
}

// New returns an Observable holding initial.
func New[T any](initial T) *Observable[T] {
	return &Observable[T]{
		value:     initial,
		listeners: make(map[*listener[T]]struct{}),
	}
}

// Get returns the current value.
func (o *Observable[T]) Get() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value
}

// Set replaces the value and synchronously notifies every listener, even when
// the new value equals the old one. Concurrent Sets are applied one at a time,
// so listeners see values in the order Get reports them. A listener must not
// call Set on the observable it listens to.
func (o *Observable[T]) Set(value T) {
	o.setMu.Lock()
	defer o.setMu.Unlock()

	o.mu.Lock()
	o.value = value
	ls := make([]*listener[T], 0, len(o.listeners))
	for l := range o.listeners {
		ls = append(ls, l)
	}
	o.mu.Unlock()

	for _, l := range ls {
		notify(l, value)
	}
}

// Subscribe adds fn to the listeners. fn is not called with the current
// value; use Get for that.
func (o *Observable[T]) Subscribe(fn func(T)) Unsubscribe {
	l := &listener[T]{fn: fn}
	o.mu.Lock()
	o.listeners[l] = struct{}{}
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.listeners, l)
		o.mu.Unlock()
	}
}

// Listeners returns the number of registered listeners.
func (o *Observable[T]) Listeners() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.listeners)
}

func notify[T any](l *listener[T], value T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Observable listener panicked", "panic", r)
		}
	}()
	l.fn(value)
}
