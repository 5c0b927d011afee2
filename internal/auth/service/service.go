// Package service implements registration, activation, login, social sign-in,
// logout and profile administration on top of the user store and the session
// cache.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"learnhub/internal/auth/device"
	"learnhub/internal/auth/models"
	jwttoken "learnhub/internal/jwt_token"
	"learnhub/internal/platform/metrics"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
)

type UserStore interface {
	Create(ctx context.Context, p *models.Principal) error
	FindByID(ctx context.Context, userID id.UserID) (*models.Principal, error)
	FindByEmail(ctx context.Context, email string) (*models.Principal, error)
	UpdateName(ctx context.Context, userID id.UserID, name string, at time.Time) (*models.Principal, error)
	UpdateRole(ctx context.Context, userID id.UserID, role models.Role, at time.Time) (*models.Principal, error)
	UpdatePassword(ctx context.Context, userID id.UserID, hash []byte, at time.Time) error
	Delete(ctx context.Context, userID id.UserID) error
}

type SessionStore interface {
	Put(ctx context.Context, userID id.UserID, sess *models.Session, ttl time.Duration) error
	Get(ctx context.Context, userID id.UserID) (*models.Session, error)
	Replace(ctx context.Context, userID id.UserID, sess *models.Session) (bool, error)
	Delete(ctx context.Context, userID id.UserID) error
}

// EnrollmentStore is the owner of a principal's course list.
type EnrollmentStore interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]models.EnrollmentRecord, error)
	DeleteByUser(ctx context.Context, userID id.UserID) error
}

type TokenIssuer interface {
	IssuePair(userID id.UserID) (*jwttoken.TokenPair, error)
	IssueActivation(reg jwttoken.Registration) (*jwttoken.ActivationTicket, error)
	VerifyActivation(token, code string) (*jwttoken.Registration, error)
}

type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Verify(password string, hash []byte) error
}

type Service struct {
	users       UserStore
	sessions    SessionStore
	enrollments EnrollmentStore
	tokens      TokenIssuer
	passwords   PasswordHasher
	tx          TxRunner
	devices     *device.Service
	sessionTTL  time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Config holds the collaborators every Service needs.
type Config struct {
	Users       UserStore
	Sessions    SessionStore
	Enrollments EnrollmentStore
	Tokens      TokenIssuer
	Passwords   PasswordHasher
	Tx          TxRunner
	SessionTTL  time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithDeviceService(devices *device.Service) Option {
	return func(s *Service) {
		s.devices = devices
	}
}

func New(cfg Config, opts ...Option) (*Service, error) {
	switch {
	case cfg.Users == nil:
		return nil, errors.New("user store is required")
	case cfg.Sessions == nil:
		return nil, errors.New("session store is required")
	case cfg.Enrollments == nil:
		return nil, errors.New("enrollment store is required")
	case cfg.Tokens == nil:
		return nil, errors.New("token issuer is required")
	case cfg.Passwords == nil:
		return nil, errors.New("password hasher is required")
	case cfg.Tx == nil:
		return nil, errors.New("tx runner is required")
	case cfg.SessionTTL <= 0:
		return nil, errors.New("session ttl must be positive")
	}
	s := &Service{
		users:       cfg.Users,
		sessions:    cfg.Sessions,
		enrollments: cfg.Enrollments,
		tokens:      cfg.Tokens,
		passwords:   cfg.Passwords,
		tx:          cfg.Tx,
		sessionTTL:  cfg.SessionTTL,
		devices:     device.NewService(false),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// withCourses fills the principal's course list from the enrollment store.
func (s *Service) withCourses(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	courses, err := s.enrollments.ListByUser(ctx, p.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load enrollments")
	}
	p.Courses = courses
	return p, nil
}
