package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	authModels "learnhub/internal/auth/models"
	"learnhub/internal/enrollment/models"
	id "learnhub/pkg/domain"
	"learnhub/pkg/platform/sentinel"
	"learnhub/pkg/platform/tx"
)

// PostgresStore keeps enrollments in a table keyed by (user_id, course_id);
// the primary key is what makes a second insert for the same pair a no-op.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateCourse(ctx context.Context, c *models.Course) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO courses (id, name, price, purchased) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		c.ID.String(), c.Name, c.Price, c.Purchased,
	)
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindCourse(ctx context.Context, courseID id.CourseID) (*models.Course, error) {
	var (
		c        models.Course
		courseUU uuid.UUID
	)
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, name, price, purchased FROM courses WHERE id = $1`, courseID.String(),
	).Scan(&courseUU, &c.Name, &c.Price, &c.Purchased)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find course: %w", err)
	}
	c.ID = id.CourseID(courseUU)
	return &c, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]authModels.EnrollmentRecord, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT course_id, purchased_at FROM enrollments
		WHERE user_id = $1 ORDER BY purchased_at, course_id`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var records []authModels.EnrollmentRecord
	for rows.Next() {
		var (
			courseUU uuid.UUID
			at       time.Time
		)
		if err := rows.Scan(&courseUU, &at); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		records = append(records, authModels.EnrollmentRecord{CourseID: id.CourseID(courseUU), PurchasedAt: at})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return records, nil
}

// InsertEnrollment reports false when the pair already exists.
func (s *PostgresStore) InsertEnrollment(ctx context.Context, userID id.UserID, courseID id.CourseID, at time.Time) (bool, error) {
	var inserted uuid.UUID
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO enrollments (user_id, course_id, purchased_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, course_id) DO NOTHING
		RETURNING course_id`,
		userID.String(), courseID.String(), at,
	).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert enrollment: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) IncrementPurchased(ctx context.Context, courseID id.CourseID) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE courses SET purchased = purchased + 1 WHERE id = $1`, courseID.String())
	if err != nil {
		return fmt.Errorf("increment purchased: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// DeleteByUser removes a user's rows. Purchase counters are kept.
func (s *PostgresStore) DeleteByUser(ctx context.Context, userID id.UserID) error {
	if _, err := tx.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM enrollments WHERE user_id = $1`, userID.String()); err != nil {
		return fmt.Errorf("delete enrollments: %w", err)
	}
	return nil
}
