// Package snapshot keeps the cached session copy of a principal in step with
// the persistent store after a mutation.
package snapshot

import (
	"context"
	"errors"
	"fmt"

	"learnhub/internal/auth/models"
	id "learnhub/pkg/domain"
	"learnhub/pkg/platform/sentinel"
)

type Store interface {
	Get(ctx context.Context, userID id.UserID) (*models.Session, error)
	Replace(ctx context.Context, userID id.UserID, sess *models.Session) (bool, error)
	Delete(ctx context.Context, userID id.UserID) error
}

// Refresh rewrites the live session for p, keeping the device fingerprint of
// the current entry. Users without a live session are left alone.
//
// If the rewrite fails the entry is deleted instead, which forces a new login
// rather than leaving a stale snapshot behind. An error is returned only when
// neither write succeeded.
func Refresh(ctx context.Context, store Store, p *models.Principal) error {
	current, err := store.Get(ctx, p.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err == nil {
		_, err = store.Replace(ctx, p.ID, models.NewSession(p, current.DeviceFingerprint))
		if err == nil {
			return nil
		}
	}
	if delErr := store.Delete(ctx, p.ID); delErr != nil {
		return fmt.Errorf("refresh session snapshot: %w", errors.Join(err, delErr))
	}
	return nil
}
