package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"learnhub/internal/auth/models"
	jwttoken "learnhub/internal/jwt_token"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestSocialAuth() {
	ctx := context.Background()
	req := SocialAuthRequest{Name: "Learner", Email: "Learner@Example.com"}
	pair := &jwttoken.TokenPair{AccessToken: "access", RefreshToken: "refresh", RefreshExpiresAt: time.Now().Add(time.Hour)}

	s.Run("existing principal signs in", func() {
		p := newPrincipal(models.RoleUser)
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "learner@example.com").Return(p, nil)
		s.mockEnrollmentStore.EXPECT().ListByUser(gomock.Any(), p.ID).Return(nil, nil)
		s.mockTokens.EXPECT().IssuePair(p.ID).Return(pair, nil)
		s.mockSessionStore.EXPECT().Put(gomock.Any(), p.ID, gomock.Any(), testSessionTTL).Return(nil)

		got, err := s.service.SocialAuth(ctx, req)
		s.Require().NoError(err)
		s.False(got.Created)
		s.Equal(p.ID, got.Principal.ID)
		s.Nil(got.Principal.PasswordHash)
		s.Equal(pair, got.Tokens)
	})

	s.Run("first sight creates a principal with a random password", func() {
		var created id.UserID
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "learner@example.com").Return(nil, sentinel.ErrNotFound)
		s.mockPasswords.EXPECT().Hash(gomock.Any()).DoAndReturn(func(secret string) ([]byte, error) {
			s.GreaterOrEqual(len(secret), 20)
			return []byte("random"), nil
		})
		s.mockUserStore.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p *models.Principal) error {
				created = p.ID
				s.Equal(models.RoleUser, p.Role)
				return nil
			})
		s.mockEnrollmentStore.EXPECT().ListByUser(gomock.Any(), gomock.Any()).Return(nil, nil)
		s.mockTokens.EXPECT().IssuePair(gomock.Any()).Return(pair, nil)
		s.mockSessionStore.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), testSessionTTL).DoAndReturn(
			func(_ context.Context, userID id.UserID, sess *models.Session, _ time.Duration) error {
				s.Equal(created, userID)
				s.Equal("learner@example.com", sess.Email)
				return nil
			})

		got, err := s.service.SocialAuth(ctx, req)
		s.Require().NoError(err)
		s.True(got.Created)
		s.Equal(created, got.Principal.ID)
	})

	s.Run("concurrent first sign-in adopts the winner", func() {
		winner := newPrincipal(models.RoleUser)
		gomock.InOrder(
			s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "learner@example.com").Return(nil, sentinel.ErrNotFound),
			s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "learner@example.com").Return(winner, nil),
		)
		s.mockPasswords.EXPECT().Hash(gomock.Any()).Return([]byte("random"), nil)
		s.mockUserStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		s.mockEnrollmentStore.EXPECT().ListByUser(gomock.Any(), winner.ID).Return(nil, nil)
		s.mockTokens.EXPECT().IssuePair(winner.ID).Return(pair, nil)
		s.mockSessionStore.EXPECT().Put(gomock.Any(), winner.ID, gomock.Any(), testSessionTTL).Return(nil)

		got, err := s.service.SocialAuth(ctx, req)
		s.Require().NoError(err)
		s.False(got.Created)
		s.Equal(winner.ID, got.Principal.ID)
	})

	s.Run("session store unavailable", func() {
		p := newPrincipal(models.RoleUser)
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(p, nil)
		s.mockEnrollmentStore.EXPECT().ListByUser(gomock.Any(), p.ID).Return(nil, nil)
		s.mockTokens.EXPECT().IssuePair(p.ID).Return(pair, nil)
		s.mockSessionStore.EXPECT().Put(gomock.Any(), p.ID, gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

		_, err := s.service.SocialAuth(ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeUpstreamFailure))
	})

	s.Run("missing email", func() {
		_, err := s.service.SocialAuth(ctx, SocialAuthRequest{Name: "Learner"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
