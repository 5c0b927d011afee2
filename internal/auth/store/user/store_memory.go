package user

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"learnhub/internal/auth/models"
	id "learnhub/pkg/domain"
	"learnhub/pkg/platform/sentinel"
)

// InMemoryUserStore holds principals without their enrollment list; courses
// are owned by the enrollment store.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.Principal
	byEmail map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]*models.Principal),
		byEmail: make(map[string]id.UserID),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func clone(p *models.Principal) *models.Principal {
	cp := *p
	cp.Courses = nil
	cp.PasswordHash = slices.Clone(p.PasswordHash)
	return &cp
}

// Create returns sentinel.ErrConflict when the email is already registered.
func (s *InMemoryUserStore) Create(_ context.Context, p *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizeEmail(p.Email)
	if _, taken := s.byEmail[key]; taken {
		return sentinel.ErrConflict
	}
	if _, taken := s.users[p.ID]; taken {
		return sentinel.ErrConflict
	}
	s.users[p.ID] = clone(p)
	s.byEmail[key] = p.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(p), nil
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.users[userID]), nil
}

func (s *InMemoryUserStore) UpdateName(_ context.Context, userID id.UserID, name string, at time.Time) (*models.Principal, error) {
	return s.update(userID, func(p *models.Principal) {
		p.Name = name
		p.UpdatedAt = at
	})
}

func (s *InMemoryUserStore) UpdateRole(_ context.Context, userID id.UserID, role models.Role, at time.Time) (*models.Principal, error) {
	return s.update(userID, func(p *models.Principal) {
		p.Role = role
		p.UpdatedAt = at
	})
}

func (s *InMemoryUserStore) UpdatePassword(_ context.Context, userID id.UserID, hash []byte, at time.Time) error {
	_, err := s.update(userID, func(p *models.Principal) {
		p.PasswordHash = slices.Clone(hash)
		p.UpdatedAt = at
	})
	return err
}

func (s *InMemoryUserStore) update(userID id.UserID, fn func(*models.Principal)) (*models.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	fn(p)
	return clone(p), nil
}

// Delete returns sentinel.ErrNotFound when the user does not exist.
func (s *InMemoryUserStore) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byEmail, normalizeEmail(p.Email))
	delete(s.users, userID)
	return nil
}
