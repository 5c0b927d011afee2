package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"learnhub/internal/auth/models"
	jwttoken "learnhub/internal/jwt_token"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestRequestActivation() {
	ctx := context.Background()
	req := RegisterRequest{Name: " Learner ", Email: "Learner@Example.com", Password: "secret123"}

	s.Run("signs the pending registration without persisting it", func() {
		ticket := &jwttoken.ActivationTicket{Token: "activation", Code: "4821", ExpiresAt: time.Now().Add(jwttoken.ActivationTTL)}
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "learner@example.com").Return(nil, sentinel.ErrNotFound)
		s.mockPasswords.EXPECT().Hash("secret123").Return([]byte("hashed"), nil)
		s.mockTokens.EXPECT().IssueActivation(jwttoken.Registration{
			Name:         "Learner",
			Email:        "learner@example.com",
			PasswordHash: []byte("hashed"),
		}).Return(ticket, nil)

		got, err := s.service.RequestActivation(ctx, req)
		s.Require().NoError(err)
		s.Equal(ticket, got)
	})

	s.Run("email already registered", func() {
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "learner@example.com").Return(newPrincipal(models.RoleUser), nil)

		_, err := s.service.RequestActivation(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("activation not configured", func() {
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.mockPasswords.EXPECT().Hash(gomock.Any()).Return([]byte("hashed"), nil)
		s.mockTokens.EXPECT().IssueActivation(gomock.Any()).Return(nil, jwttoken.ErrActivationDisabled)

		_, err := s.service.RequestActivation(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("missing email", func() {
		_, err := s.service.RequestActivation(ctx, RegisterRequest{Name: "Learner", Password: "secret123"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestActivateUser() {
	ctx := context.Background()
	reg := &jwttoken.Registration{Name: "Learner", Email: "learner@example.com", PasswordHash: []byte("hashed")}

	s.Run("creates the principal carried by the token", func() {
		s.mockTokens.EXPECT().VerifyActivation("activation", "4821").Return(reg, nil)
		s.mockUserStore.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p *models.Principal) error {
				s.Equal("learner@example.com", p.Email)
				s.Equal([]byte("hashed"), p.PasswordHash)
				s.Equal(models.RoleUser, p.Role)
				return nil
			})

		p, err := s.service.ActivateUser(ctx, " activation ", "4821")
		s.Require().NoError(err)
		s.Equal("Learner", p.Name)
		s.Nil(p.PasswordHash)
	})

	s.Run("replayed token", func() {
		s.mockTokens.EXPECT().VerifyActivation("activation", "4821").Return(reg, nil)
		s.mockUserStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

		_, err := s.service.ActivateUser(ctx, "activation", "4821")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("wrong code", func() {
		s.mockTokens.EXPECT().VerifyActivation("activation", "0000").Return(nil, jwttoken.ErrActivationCode)

		_, err := s.service.ActivateUser(ctx, "activation", "0000")
		s.ErrorIs(err, jwttoken.ErrActivationCode)
	})

	s.Run("verifier failure", func() {
		s.mockTokens.EXPECT().VerifyActivation(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))

		_, err := s.service.ActivateUser(ctx, "activation", "4821")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("missing code", func() {
		_, err := s.service.ActivateUser(ctx, "activation", " ")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}
