package notification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresSink inserts a batch in one round trip.
type PostgresSink struct {
	db *sql.DB
}

func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Write(ctx context.Context, batch []Notification) error {
	if len(batch) == 0 {
		return nil
	}
	ids := make([]string, len(batch))
	users := make([]string, len(batch))
	titles := make([]string, len(batch))
	messages := make([]string, len(batch))
	statuses := make([]string, len(batch))
	createdAt := make([]string, len(batch))
	for i, n := range batch {
		ids[i] = n.ID.String()
		users[i] = n.UserID.String()
		titles[i] = n.Title
		messages[i] = n.Message
		statuses[i] = string(n.Status)
		createdAt[i] = n.CreatedAt.UTC().Format(time.RFC3339Nano)
	}

	query := `
		INSERT INTO notifications (id, user_id, title, message, status, created_at)
		SELECT unnest($1::uuid[]), unnest($2::uuid[]), unnest($3::text[]),
		       unnest($4::text[]), unnest($5::text[]), unnest($6::timestamptz[])
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		pq.Array(ids), pq.Array(users), pq.Array(titles),
		pq.Array(messages), pq.Array(statuses), pq.Array(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}
