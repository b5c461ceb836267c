package panel_test

import (
	"context"
	"sync"

	"github.com/nfrund/vrpanel/internal/statesync"
)

// fakeSource records watchers without any socket behind it.
type fakeSource struct {
	mu    sync.Mutex
	count int
}

func (s *fakeSource) Watch(ctx context.Context, handler statesync.Handler) statesync.Unsubscribe {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.count--
			s.mu.Unlock()
		})
	}
}

func (s *fakeSource) watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
