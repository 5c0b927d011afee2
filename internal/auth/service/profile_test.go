package service

import (
	"context"
	"errors"

	"go.uber.org/mock/gomock"

	"learnhub/internal/auth/models"
	"learnhub/internal/auth/password"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestUpdateUserInfo() {
	ctx := context.Background()

	s.Run("refreshes the live snapshot", func() {
		p := newPrincipal(models.RoleUser)
		renamed := *p
		renamed.Name = "Renamed"
		live := models.NewSession(p, "fp")

		s.mockUserStore.EXPECT().UpdateName(gomock.Any(), p.ID, "Renamed", gomock.Any()).Return(&renamed, nil)
		s.mockEnrollmentStore.EXPECT().ListByUser(gomock.Any(), p.ID).Return(nil, nil)
		s.mockSessionStore.EXPECT().Get(gomock.Any(), p.ID).Return(live, nil)
		s.mockSessionStore.EXPECT().Replace(gomock.Any(), p.ID, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ id.UserID, sess *models.Session) (bool, error) {
				s.Equal("Renamed", sess.Name)
				s.Equal("fp", sess.DeviceFingerprint)
				return true, nil
			})

		got, err := s.service.UpdateUserInfo(ctx, p.ID, " Renamed ")
		s.Require().NoError(err)
		s.Equal("Renamed", got.Name)
	})

	s.Run("no live session leaves the cache alone", func() {
		p := newPrincipal(models.RoleUser)
		s.mockUserStore.EXPECT().UpdateName(gomock.Any(), p.ID, "Renamed", gomock.Any()).Return(p, nil)
		s.mockEnrollmentStore.EXPECT().ListByUser(gomock.Any(), p.ID).Return(nil, nil)
		s.mockSessionStore.EXPECT().Get(gomock.Any(), p.ID).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.UpdateUserInfo(ctx, p.ID, "Renamed")
		s.NoError(err)
	})

	s.Run("snapshot refresh fails", func() {
		p := newPrincipal(models.RoleUser)
		s.mockUserStore.EXPECT().UpdateName(gomock.Any(), p.ID, "Renamed", gomock.Any()).Return(p, nil)
		s.mockEnrollmentStore.EXPECT().ListByUser(gomock.Any(), p.ID).Return(nil, nil)
		s.mockSessionStore.EXPECT().Get(gomock.Any(), p.ID).Return(models.NewSession(p, ""), nil)
		s.mockSessionStore.EXPECT().Replace(gomock.Any(), p.ID, gomock.Any()).Return(false, errors.New("redis down"))
		s.mockSessionStore.EXPECT().Delete(gomock.Any(), p.ID).Return(errors.New("redis down"))

		_, err := s.service.UpdateUserInfo(ctx, p.ID, "Renamed")
		s.True(dErrors.HasCode(err, dErrors.CodeUpstreamFailure))
	})

	s.Run("empty name", func() {
		_, err := s.service.UpdateUserInfo(ctx, id.NewUserID(), "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown user", func() {
		userID := id.NewUserID()
		s.mockUserStore.EXPECT().UpdateName(gomock.Any(), userID, "Renamed", gomock.Any()).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.UpdateUserInfo(ctx, userID, "Renamed")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestUpdateRole() {
	ctx := context.Background()
	admin := models.AuthContext{UserID: id.NewUserID(), Role: models.RoleAdmin}

	s.Run("promotes and refreshes the target snapshot", func() {
		p := newPrincipal(models.RoleUser)
		promoted := *p
		promoted.Role = models.RoleAdmin

		s.mockUserStore.EXPECT().UpdateRole(gomock.Any(), p.ID, models.RoleAdmin, gomock.Any()).Return(&promoted, nil)
		s.mockEnrollmentStore.EXPECT().ListByUser(gomock.Any(), p.ID).Return(nil, nil)
		s.mockSessionStore.EXPECT().Get(gomock.Any(), p.ID).Return(models.NewSession(p, ""), nil)
		s.mockSessionStore.EXPECT().Replace(gomock.Any(), p.ID, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ id.UserID, sess *models.Session) (bool, error) {
				s.Equal(models.RoleAdmin, sess.Role)
				return true, nil
			})

		got, err := s.service.UpdateRole(ctx, admin, p.ID, "admin")
		s.Require().NoError(err)
		s.Equal(models.RoleAdmin, got.Role)
	})

	s.Run("invalid role", func() {
		_, err := s.service.UpdateRole(ctx, admin, id.NewUserID(), "owner")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown user", func() {
		userID := id.NewUserID()
		s.mockUserStore.EXPECT().UpdateRole(gomock.Any(), userID, models.RoleUser, gomock.Any()).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.UpdateRole(ctx, admin, userID, "user")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestUpdatePassword() {
	ctx := context.Background()

	s.Run("stores the new hash and refreshes the snapshot", func() {
		p := newPrincipal(models.RoleUser)
		s.mockUserStore.EXPECT().FindByID(gomock.Any(), p.ID).Return(p, nil)
		s.mockPasswords.EXPECT().Verify("secret123", []byte("$2a$hash")).Return(nil)
		s.mockPasswords.EXPECT().Hash("n3w-secret").Return([]byte("$2a$new"), nil)
		s.mockUserStore.EXPECT().UpdatePassword(gomock.Any(), p.ID, []byte("$2a$new"), gomock.Any()).Return(nil)
		s.mockEnrollmentStore.EXPECT().ListByUser(gomock.Any(), p.ID).Return(nil, nil)
		s.mockSessionStore.EXPECT().Get(gomock.Any(), p.ID).Return(models.NewSession(p, "fp"), nil)
		s.mockSessionStore.EXPECT().Replace(gomock.Any(), p.ID, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ id.UserID, sess *models.Session) (bool, error) {
				s.True(sess.UpdatedAt.After(p.CreatedAt))
				s.Equal("fp", sess.DeviceFingerprint)
				return true, nil
			})

		s.NoError(s.service.UpdatePassword(ctx, p.ID, "secret123", "n3w-secret"))
	})

	s.Run("wrong current password", func() {
		p := newPrincipal(models.RoleUser)
		s.mockUserStore.EXPECT().FindByID(gomock.Any(), p.ID).Return(p, nil)
		s.mockPasswords.EXPECT().Verify("guess", gomock.Any()).Return(password.ErrMismatch)

		err := s.service.UpdatePassword(ctx, p.ID, "guess", "n3w-secret")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		s.Contains(err.Error(), "old password is incorrect")
	})

	s.Run("weak new password", func() {
		p := newPrincipal(models.RoleUser)
		s.mockUserStore.EXPECT().FindByID(gomock.Any(), p.ID).Return(p, nil)
		s.mockPasswords.EXPECT().Verify("secret123", gomock.Any()).Return(nil)
		s.mockPasswords.EXPECT().Hash("abc").Return(nil, dErrors.New(dErrors.CodeValidation, "too short"))

		err := s.service.UpdatePassword(ctx, p.ID, "secret123", "abc")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing fields", func() {
		err := s.service.UpdatePassword(ctx, id.NewUserID(), "", "n3w-secret")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("principal without password", func() {
		p := newPrincipal(models.RoleUser)
		p.PasswordHash = nil
		s.mockUserStore.EXPECT().FindByID(gomock.Any(), p.ID).Return(p, nil)

		err := s.service.UpdatePassword(ctx, p.ID, "secret123", "n3w-secret")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("user deleted between lookup and write", func() {
		p := newPrincipal(models.RoleUser)
		s.mockUserStore.EXPECT().FindByID(gomock.Any(), p.ID).Return(p, nil)
		s.mockPasswords.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(nil)
		s.mockPasswords.EXPECT().Hash(gomock.Any()).Return([]byte("$2a$new"), nil)
		s.mockUserStore.EXPECT().UpdatePassword(gomock.Any(), p.ID, gomock.Any(), gomock.Any()).Return(sentinel.ErrNotFound)

		err := s.service.UpdatePassword(ctx, p.ID, "secret123", "n3w-secret")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
