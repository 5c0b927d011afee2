package service

import (
	"context"
	"errors"

	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/platform/sentinel"
	"learnhub/pkg/requestcontext"
)

// DeleteUser revokes the principal's session first so no request can keep
// acting as the user while its rows are removed.
func (s *Service) DeleteUser(ctx context.Context, userID id.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "user ID required")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return s.translateUserErr(err, "failed to lookup user")
	}

	if err := s.sessions.Delete(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete user session")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.enrollments.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		return s.users.Delete(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		if dErrors.HasCode(err, dErrors.CodeTimeout) {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "user deletion timed out")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete user")
	}

	s.logger.InfoContext(ctx, "user deleted",
		"user_id", userID.String(),
		"email", user.Email,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}
