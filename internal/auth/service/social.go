package service

import (
	"context"
	"crypto/rand"
	"errors"

	"learnhub/internal/auth/models"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
	"learnhub/pkg/requestcontext"
)

// SocialAuthRequest is the identity an external provider vouched for on the
// client.
type SocialAuthRequest struct {
	Name  string
	Email string
}

// SocialAuth signs in the principal owning req.Email, creating it with an
// unusable random password on first sight. Either way a token pair is issued
// and the session snapshot written, exactly as Login does.
func (s *Service) SocialAuth(ctx context.Context, req SocialAuthRequest) (*LoginResult, error) {
	name, email, err := normalizeRegistration(RegisterRequest{Name: req.Name, Email: req.Email})
	if err != nil {
		return nil, err
	}

	created := false
	p, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		p.PasswordHash = nil
	case errors.Is(err, sentinel.ErrNotFound):
		p, created, err = s.createSocialPrincipal(ctx, name, email)
		if err != nil {
			return nil, err
		}
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lookup user")
	}

	result, err := s.startSession(ctx, p)
	if err != nil {
		return nil, err
	}
	result.Created = created

	s.metrics.IncrementLogin("social")
	s.logger.InfoContext(ctx, "user signed in with social provider",
		"user_id", p.ID.String(),
		"created", created,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}

// createSocialPrincipal loses gracefully to a concurrent sign-in for the same
// email by returning the winner's principal.
func (s *Service) createSocialPrincipal(ctx context.Context, name, email string) (*models.Principal, bool, error) {
	hash, err := s.hashPassword(rand.Text())
	if err != nil {
		return nil, false, err
	}
	p, err := s.createPrincipal(ctx, name, email, hash)
	if err == nil {
		return p, true, nil
	}
	if !dErrors.HasCode(err, dErrors.CodeConflict) {
		return nil, false, err
	}
	p, err = s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lookup user")
	}
	p.PasswordHash = nil
	return p, false, nil
}
