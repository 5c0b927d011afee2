// Package notification delivers in-app notifications on a best-effort basis.
// Producers never wait on delivery: Notify enqueues or drops.
package notification

import (
	"context"
	"fmt"
	"time"

	id "learnhub/pkg/domain"
)

type Status string

const StatusUnread Status = "unread"

type Notification struct {
	ID        id.NotificationID `json:"id"`
	UserID    id.UserID         `json:"userId"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Status    Status            `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Sink persists or forwards a batch of notifications.
type Sink interface {
	Write(ctx context.Context, batch []Notification) error
}

// PartialWriteError reports a failed write in which Written notifications of
// the batch were still delivered.
type PartialWriteError struct {
	Written int
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write (%d delivered): %v", e.Written, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
