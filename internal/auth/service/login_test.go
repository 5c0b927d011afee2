package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"learnhub/internal/auth/models"
	"learnhub/internal/auth/password"
	jwttoken "learnhub/internal/jwt_token"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestRegister() {
	ctx := context.Background()

	s.Run("creates a user principal", func() {
		s.mockPasswords.EXPECT().Hash("secret123").Return([]byte("hashed"), nil)
		s.mockUserStore.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p *models.Principal) error {
				s.Equal("learner@example.com", p.Email)
				s.Equal(models.RoleUser, p.Role)
				s.Equal([]byte("hashed"), p.PasswordHash)
				s.False(p.ID.IsNil())
				return nil
			})

		p, err := s.service.Register(ctx, RegisterRequest{Name: " Learner ", Email: "Learner@Example.com", Password: "secret123"})
		s.Require().NoError(err)
		s.Equal("Learner", p.Name)
		s.Nil(p.PasswordHash)
	})

	s.Run("duplicate email", func() {
		s.mockPasswords.EXPECT().Hash(gomock.Any()).Return([]byte("hashed"), nil)
		s.mockUserStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

		_, err := s.service.Register(ctx, RegisterRequest{Name: "Learner", Email: "learner@example.com", Password: "secret123"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("missing name", func() {
		_, err := s.service.Register(ctx, RegisterRequest{Email: "learner@example.com", Password: "secret123"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("weak password", func() {
		s.mockPasswords.EXPECT().Hash("abc").Return(nil, dErrors.New(dErrors.CodeValidation, "too short"))

		_, err := s.service.Register(ctx, RegisterRequest{Name: "Learner", Email: "learner@example.com", Password: "abc"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestLogin() {
	ctx := context.Background()
	courseID := id.NewCourseID()
	pair := &jwttoken.TokenPair{
		AccessToken:      "access",
		AccessExpiresAt:  time.Now().Add(5 * time.Minute),
		RefreshToken:     "refresh",
		RefreshExpiresAt: time.Now().Add(72 * time.Hour),
	}

	s.Run("writes the session snapshot with courses", func() {
		p := newPrincipal(models.RoleUser)
		courses := []models.EnrollmentRecord{{CourseID: courseID, PurchasedAt: p.CreatedAt}}

		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), "learner@example.com").Return(p, nil)
		s.mockPasswords.EXPECT().Verify("secret123", []byte("$2a$hash")).Return(nil)
		s.mockEnrollmentStore.EXPECT().ListByUser(gomock.Any(), p.ID).Return(courses, nil)
		s.mockTokens.EXPECT().IssuePair(p.ID).Return(pair, nil)
		s.mockSessionStore.EXPECT().Put(gomock.Any(), p.ID, gomock.Any(), testSessionTTL).DoAndReturn(
			func(_ context.Context, _ id.UserID, sess *models.Session, _ time.Duration) error {
				s.Equal(p.ID, sess.UserID)
				s.Equal(courses, sess.Courses)
				return nil
			})

		result, err := s.service.Login(ctx, "Learner@example.com", "secret123")
		s.Require().NoError(err)
		s.Equal(pair, result.Tokens)
		s.True(result.Principal.HasCourse(courseID))
		s.Nil(result.Principal.PasswordHash)
	})

	s.Run("unknown email", func() {
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Login(ctx, "nobody@example.com", "secret123")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("wrong password", func() {
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(newPrincipal(models.RoleUser), nil)
		s.mockPasswords.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(password.ErrMismatch)

		_, err := s.service.Login(ctx, "learner@example.com", "nope")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("missing fields", func() {
		_, err := s.service.Login(ctx, "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("session store down", func() {
		p := newPrincipal(models.RoleUser)
		s.mockUserStore.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).Return(p, nil)
		s.mockPasswords.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(nil)
		s.mockEnrollmentStore.EXPECT().ListByUser(gomock.Any(), p.ID).Return(nil, nil)
		s.mockTokens.EXPECT().IssuePair(p.ID).Return(pair, nil)
		s.mockSessionStore.EXPECT().Put(gomock.Any(), p.ID, gomock.Any(), testSessionTTL).Return(errors.New("redis down"))

		_, err := s.service.Login(ctx, "learner@example.com", "secret123")
		s.True(dErrors.HasCode(err, dErrors.CodeUpstreamFailure))
	})
}

func (s *ServiceSuite) TestLogout() {
	ctx := context.Background()
	userID := id.NewUserID()

	s.Run("deletes the session", func() {
		s.mockSessionStore.EXPECT().Delete(gomock.Any(), userID).Return(nil)
		s.NoError(s.service.Logout(ctx, userID))
	})

	s.Run("session store down", func() {
		s.mockSessionStore.EXPECT().Delete(gomock.Any(), userID).Return(errors.New("redis down"))
		s.True(dErrors.HasCode(s.service.Logout(ctx, userID), dErrors.CodeUpstreamFailure))
	})

	s.Run("nil user", func() {
		s.True(dErrors.HasCode(s.service.Logout(ctx, id.UserID{}), dErrors.CodeUnauthorized))
	})
}
