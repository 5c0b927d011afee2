package service

import (
	"context"
	"errors"
	"strings"

	"learnhub/internal/auth/models"
	jwttoken "learnhub/internal/jwt_token"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
	"learnhub/pkg/requestcontext"
)

// RequestActivation validates a registration and returns a signed ticket
// instead of creating the principal. Nothing is persisted until ActivateUser
// is called with the ticket's token and code.
func (s *Service) RequestActivation(ctx context.Context, req RegisterRequest) (*jwttoken.ActivationTicket, error) {
	name, email, err := normalizeRegistration(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "email already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lookup user")
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tokens.IssueActivation(jwttoken.Registration{Name: name, Email: email, PasswordHash: hash})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue activation token")
	}

	s.logger.InfoContext(ctx, "activation requested",
		"expires_at", ticket.ExpiresAt,
		"request_id", requestcontext.RequestID(ctx),
	)
	return ticket, nil
}

// ActivateUser creates the principal carried by an activation token once the
// matching code is presented. Replaying a used token is a conflict.
func (s *Service) ActivateUser(ctx context.Context, token, code string) (*models.Principal, error) {
	token, code = strings.TrimSpace(token), strings.TrimSpace(code)
	if token == "" || code == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "activation token and code are required")
	}

	reg, err := s.tokens.VerifyActivation(token, code)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeBadRequest) {
			s.logger.WarnContext(ctx, "activation rejected",
				"error", err.Error(),
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify activation")
	}
	return s.createPrincipal(ctx, reg.Name, reg.Email, reg.PasswordHash)
}
