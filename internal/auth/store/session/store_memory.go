package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"learnhub/internal/auth/models"
	id "learnhub/pkg/domain"
	"learnhub/pkg/platform/sentinel"
)

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// InMemorySessionStore mirrors RedisStore semantics for tests and local runs.
// Snapshots are stored serialized so callers never share mutable state.
type InMemorySessionStore struct {
	mu      sync.RWMutex
	entries map[id.UserID]entry
	now     func() time.Time
}

type MemoryOption func(*InMemorySessionStore)

func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemorySessionStore) {
		s.now = now
	}
}

func New(opts ...MemoryOption) *InMemorySessionStore {
	s := &InMemorySessionStore{
		entries: make(map[id.UserID]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemorySessionStore) Put(_ context.Context, userID id.UserID, sess *models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = entry{payload: payload, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemorySessionStore) Get(_ context.Context, userID id.UserID) (*models.Session, error) {
	s.mu.RLock()
	e, ok := s.entries[userID]
	s.mu.RUnlock()
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	var sess models.Session
	if err := json.Unmarshal(e.payload, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *InMemorySessionStore) Replace(_ context.Context, userID id.UserID, sess *models.Session) (bool, error) {
	payload, err := json.Marshal(sess)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok || !s.now().Before(e.expiresAt) {
		delete(s.entries, userID)
		return false, nil
	}
	s.entries[userID] = entry{payload: payload, expiresAt: e.expiresAt}
	return true, nil
}

func (s *InMemorySessionStore) Extend(_ context.Context, userID id.UserID, ttl time.Duration) (*models.Session, error) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	if !ok || !s.now().Before(e.expiresAt) {
		delete(s.entries, userID)
		s.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}
	e.expiresAt = s.now().Add(ttl)
	s.entries[userID] = e
	s.mu.Unlock()

	var sess models.Session
	if err := json.Unmarshal(e.payload, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}
