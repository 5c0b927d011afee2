package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            uuid PRIMARY KEY,
    email         text NOT NULL,
    name          text NOT NULL,
    role          text NOT NULL DEFAULT 'user',
    password_hash bytea NOT NULL,
    created_at    timestamptz NOT NULL DEFAULT NOW(),
    updated_at    timestamptz NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_unique
ON users (LOWER(email));

CREATE TABLE IF NOT EXISTS courses (
    id        uuid PRIMARY KEY,
    name      text NOT NULL,
    price     bigint NOT NULL DEFAULT 0,
    purchased bigint NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS enrollments (
    user_id      uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    course_id    uuid NOT NULL REFERENCES courses(id),
    purchased_at timestamptz NOT NULL,
    PRIMARY KEY (user_id, course_id)
);

CREATE TABLE IF NOT EXISTS notifications (
    id         uuid PRIMARY KEY,
    user_id    uuid NOT NULL,
    title      text NOT NULL,
    message    text NOT NULL,
    status     text NOT NULL DEFAULT 'unread',
    created_at timestamptz NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS notifications_user_id_idx
ON notifications (user_id);
`

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
