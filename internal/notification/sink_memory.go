package notification

import (
	"context"
	"sync"
)

// MemorySink records notifications for tests.
type MemorySink struct {
	mu    sync.Mutex
	items []Notification
	err   error
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// FailWith makes subsequent writes return err. Pass nil to recover.
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MemorySink) Write(_ context.Context, batch []Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, batch...)
	return nil
}

func (s *MemorySink) Items() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}
