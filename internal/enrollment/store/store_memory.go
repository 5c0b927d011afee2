package store

import (
	"context"
	"slices"
	"sync"
	"time"

	authModels "learnhub/internal/auth/models"
	"learnhub/internal/enrollment/models"
	id "learnhub/pkg/domain"
	"learnhub/pkg/platform/sentinel"
)

// InMemoryStore holds courses and enrollment rows. Pair it with
// tx.LockRunner so insert and counter increment commit together.
type InMemoryStore struct {
	mu          sync.RWMutex
	courses     map[id.CourseID]*models.Course
	enrollments map[id.UserID][]authModels.EnrollmentRecord
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		courses:     make(map[id.CourseID]*models.Course),
		enrollments: make(map[id.UserID][]authModels.EnrollmentRecord),
	}
}

func (s *InMemoryStore) CreateCourse(_ context.Context, c *models.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[c.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *c
	s.courses[c.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindCourse(_ context.Context, courseID id.CourseID) (*models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[courseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]authModels.EnrollmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.enrollments[userID]), nil
}

// InsertEnrollment appends the record unless the pair already exists.
func (s *InMemoryStore) InsertEnrollment(_ context.Context, userID id.UserID, courseID id.CourseID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.enrollments[userID] {
		if r.CourseID == courseID {
			return false, nil
		}
	}
	s.enrollments[userID] = append(s.enrollments[userID], authModels.EnrollmentRecord{CourseID: courseID, PurchasedAt: at})
	return true, nil
}

func (s *InMemoryStore) IncrementPurchased(_ context.Context, courseID id.CourseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courses[courseID]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Purchased++
	return nil
}

// DeleteByUser drops a deleted user's rows. Purchase counters are kept.
func (s *InMemoryStore) DeleteByUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.enrollments, userID)
	return nil
}
