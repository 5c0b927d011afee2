package service

import (
	"context"
	"errors"
	"strings"

	"learnhub/internal/auth/device"
	"learnhub/internal/auth/models"
	"learnhub/internal/auth/password"
	jwttoken "learnhub/internal/jwt_token"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
	"learnhub/pkg/requestcontext"
)

type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// LoginResult is the authenticated principal plus the pair to set as cookies.
type LoginResult struct {
	Principal *models.Principal
	Tokens    *jwttoken.TokenPair
	// Created is set by SocialAuth when the principal did not exist before.
	Created bool
}

// Register creates a principal with the user role. Duplicate emails are a
// conflict.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.Principal, error) {
	name, email, err := normalizeRegistration(req)
	if err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	return s.createPrincipal(ctx, name, email, hash)
}

func normalizeRegistration(req RegisterRequest) (name, email string, err error) {
	name = strings.TrimSpace(req.Name)
	email = strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" {
		return "", "", dErrors.New(dErrors.CodeValidation, "name and email are required")
	}
	return name, email, nil
}

func (s *Service) hashPassword(pass string) ([]byte, error) {
	hash, err := s.passwords.Hash(pass)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return hash, nil
}

func (s *Service) createPrincipal(ctx context.Context, name, email string, hash []byte) (*models.Principal, error) {
	now := requestcontext.Now(ctx)
	p := &models.Principal{
		ID:           id.NewUserID(),
		Email:        email,
		Name:         name,
		Role:         models.RoleUser,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.metrics.IncrementUsersCreated()
	s.logger.InfoContext(ctx, "user registered",
		"user_id", p.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	p.PasswordHash = nil
	return p, nil
}

// Login checks credentials, issues a token pair and writes the session
// snapshot with a fresh TTL.
func (s *Service) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || pass == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "please enter email and password")
	}

	p, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementLogin("failure")
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid email or password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lookup user")
	}
	if err := s.passwords.Verify(pass, p.PasswordHash); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			s.metrics.IncrementLogin("failure")
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid email or password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	p.PasswordHash = nil

	result, err := s.startSession(ctx, p)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementLogin("success")
	s.logger.InfoContext(ctx, "user logged in",
		"user_id", p.ID.String(),
		"device", device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		"client_ip", requestcontext.ClientIP(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// startSession loads the course list, issues a pair and writes the snapshot.
func (s *Service) startSession(ctx context.Context, p *models.Principal) (*LoginResult, error) {
	p, err := s.withCourses(ctx, p)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(p.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue tokens")
	}

	fingerprint := s.devices.ComputeFingerprint(requestcontext.UserAgent(ctx))
	if err := s.sessions.Put(ctx, p.ID, models.NewSession(p, fingerprint), s.sessionTTL); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamFailure, "failed to store session")
	}
	return &LoginResult{Principal: p, Tokens: pair}, nil
}

// Logout removes the session snapshot. Outstanding tokens stop resolving
// because the guard requires a live snapshot.
func (s *Service) Logout(ctx context.Context, userID id.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	if err := s.sessions.Delete(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstreamFailure, "failed to delete session")
	}
	s.logger.InfoContext(ctx, "user logged out",
		"user_id", userID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}
