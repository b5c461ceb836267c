package statesync

import "context"

// Watch subscribes handler for as long as ctx is alive. The returned function
// ends the subscription early.
func (s *Store) Watch(ctx context.Context, handler Handler) Unsubscribe {
	unsubscribe := s.Subscribe(handler)
	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}
}
