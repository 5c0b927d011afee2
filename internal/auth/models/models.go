package models

import (
	"slices"
	"strings"
	"time"

	id "learnhub/pkg/domain"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole normalizes case and rejects unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// EnrollmentRecord marks one purchased course. Records are never edited.
type EnrollmentRecord struct {
	CourseID    id.CourseID `json:"courseId"`
	PurchasedAt time.Time   `json:"purchasedAt"`
}

// Principal is the canonical user record held by the persistent store.
type Principal struct {
	ID           id.UserID          `json:"id"`
	Email        string             `json:"email"`
	Name         string             `json:"name"`
	Role         Role               `json:"role"`
	Courses      []EnrollmentRecord `json:"courses"`
	PasswordHash []byte             `json:"-"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func (p *Principal) HasCourse(courseID id.CourseID) bool {
	return slices.ContainsFunc(p.Courses, func(r EnrollmentRecord) bool {
		return r.CourseID == courseID
	})
}

// Session is the snapshot kept in the session cache, keyed by user id. It is
// the principal minus credentials, plus the device fingerprint seen at login.
type Session struct {
	UserID            id.UserID          `json:"id"`
	Email             string             `json:"email"`
	Name              string             `json:"name"`
	Role              Role               `json:"role"`
	Courses           []EnrollmentRecord `json:"courses"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
	DeviceFingerprint string             `json:"deviceFingerprint,omitempty"`
}

// NewSession snapshots p. The course list is copied so later mutations of p
// do not leak into the cached value.
func NewSession(p *Principal, deviceFingerprint string) *Session {
	return &Session{
		UserID:            p.ID,
		Email:             p.Email,
		Name:              p.Name,
		Role:              p.Role,
		Courses:           slices.Clone(p.Courses),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		DeviceFingerprint: deviceFingerprint,
	}
}

// Principal rebuilds a credential-free principal from the snapshot.
func (s *Session) Principal() *Principal {
	return &Principal{
		ID:        s.UserID,
		Email:     s.Email,
		Name:      s.Name,
		Role:      s.Role,
		Courses:   slices.Clone(s.Courses),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// AuthContext is attached to the request once the guard authenticates it.
// It is a value and is never mutated afterwards.
type AuthContext struct {
	UserID id.UserID
	Role   Role
	Email  string
	Name   string
}

func (s *Session) AuthContext() AuthContext {
	return AuthContext{UserID: s.UserID, Role: s.Role, Email: s.Email, Name: s.Name}
}
