package service

import (
	"context"
	"errors"
	"strings"

	"learnhub/internal/auth/models"
	"learnhub/internal/auth/password"
	"learnhub/internal/auth/snapshot"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
	"learnhub/pkg/requestcontext"
)

// UpdateUserInfo renames the principal and refreshes its cached snapshot
// before returning.
func (s *Service) UpdateUserInfo(ctx context.Context, userID id.UserID, name string) (*models.Principal, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "name is required")
	}

	p, err := s.users.UpdateName(ctx, userID, name, requestcontext.Now(ctx))
	if err != nil {
		return nil, s.translateUserErr(err, "failed to update user")
	}
	return s.refreshSnapshot(ctx, p)
}

// UpdateRole changes another principal's role. Callers are expected to have
// passed the admin role check.
func (s *Service) UpdateRole(ctx context.Context, actor models.AuthContext, userID id.UserID, role string) (*models.Principal, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user ID required")
	}
	parsed, ok := models.ParseRole(role)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid role")
	}

	p, err := s.users.UpdateRole(ctx, userID, parsed, requestcontext.Now(ctx))
	if err != nil {
		return nil, s.translateUserErr(err, "failed to update role")
	}

	s.logger.InfoContext(ctx, "user role updated",
		"actor_id", actor.UserID.String(),
		"user_id", userID.String(),
		"role", string(parsed),
		"request_id", requestcontext.RequestID(ctx),
	)
	return s.refreshSnapshot(ctx, p)
}

// UpdatePassword replaces the password after checking the current one. The
// cached snapshot is refreshed so its updatedAt follows the store.
func (s *Service) UpdatePassword(ctx context.Context, userID id.UserID, oldPassword, newPassword string) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	if oldPassword == "" || newPassword == "" {
		return dErrors.New(dErrors.CodeBadRequest, "please enter old and new password")
	}

	p, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return s.translateUserErr(err, "failed to lookup user")
	}
	if len(p.PasswordHash) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "invalid user")
	}
	if err := s.passwords.Verify(oldPassword, p.PasswordHash); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return dErrors.New(dErrors.CodeBadRequest, "old password is incorrect")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	if err := s.users.UpdatePassword(ctx, userID, hash, now); err != nil {
		return s.translateUserErr(err, "failed to update password")
	}

	s.logger.InfoContext(ctx, "password updated",
		"user_id", userID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	p.PasswordHash = nil
	p.UpdatedAt = now
	_, err = s.refreshSnapshot(ctx, p)
	return err
}

func (s *Service) refreshSnapshot(ctx context.Context, p *models.Principal) (*models.Principal, error) {
	p, err := s.withCourses(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := snapshot.Refresh(ctx, s.sessions, p); err != nil {
		s.logger.ErrorContext(ctx, "failed to refresh session snapshot",
			"error", err,
			"user_id", p.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamFailure, "failed to refresh session")
	}
	return p, nil
}

func (s *Service) translateUserErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
