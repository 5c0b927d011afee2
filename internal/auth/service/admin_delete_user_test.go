package service

import (
	"context"
	"errors"

	"go.uber.org/mock/gomock"

	"learnhub/internal/auth/models"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestAdminUserDeletion() {
	ctx := context.Background()
	existing := newPrincipal(models.RoleUser)
	userID := existing.ID

	s.Run("removes session, enrollments and user", func() {
		gomock.InOrder(
			s.mockUserStore.EXPECT().FindByID(gomock.Any(), userID).Return(existing, nil),
			s.mockSessionStore.EXPECT().Delete(gomock.Any(), userID).Return(nil),
			s.mockEnrollmentStore.EXPECT().DeleteByUser(gomock.Any(), userID).Return(nil),
			s.mockUserStore.EXPECT().Delete(gomock.Any(), userID).Return(nil),
		)
		s.NoError(s.service.DeleteUser(ctx, userID))
	})

	s.Run("nil id", func() {
		s.True(dErrors.HasCode(s.service.DeleteUser(ctx, id.UserID{}), dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestAdminUserDeletion_ErrorPropagation() {
	ctx := context.Background()
	existing := newPrincipal(models.RoleUser)
	userID := existing.ID

	s.Run("user lookup fails", func() {
		s.mockUserStore.EXPECT().FindByID(gomock.Any(), userID).Return(nil, errors.New("db down"))

		err := s.service.DeleteUser(ctx, userID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("user not found", func() {
		s.mockUserStore.EXPECT().FindByID(gomock.Any(), userID).Return(nil, sentinel.ErrNotFound)

		err := s.service.DeleteUser(ctx, userID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("session delete fails", func() {
		s.mockUserStore.EXPECT().FindByID(gomock.Any(), userID).Return(existing, nil)
		s.mockSessionStore.EXPECT().Delete(gomock.Any(), userID).Return(errors.New("redis down"))

		err := s.service.DeleteUser(ctx, userID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("user delete fails", func() {
		s.mockUserStore.EXPECT().FindByID(gomock.Any(), userID).Return(existing, nil)
		s.mockSessionStore.EXPECT().Delete(gomock.Any(), userID).Return(nil)
		s.mockEnrollmentStore.EXPECT().DeleteByUser(gomock.Any(), userID).Return(nil)
		s.mockUserStore.EXPECT().Delete(gomock.Any(), userID).Return(errors.New("write fail"))

		err := s.service.DeleteUser(ctx, userID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("cancelled context", func() {
		cctx, cancel := context.WithCancel(ctx)
		s.mockUserStore.EXPECT().FindByID(gomock.Any(), userID).Return(existing, nil)
		s.mockSessionStore.EXPECT().Delete(gomock.Any(), userID).DoAndReturn(
			func(context.Context, id.UserID) error {
				cancel()
				return nil
			})

		err := s.service.DeleteUser(cctx, userID)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}
