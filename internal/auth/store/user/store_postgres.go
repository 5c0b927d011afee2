package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"learnhub/internal/auth/models"
	id "learnhub/pkg/domain"
	"learnhub/pkg/platform/sentinel"
	"learnhub/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists principals in the users table. Enrollment rows live
// in their own table and are not loaded here.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectUser = `SELECT id, email, name, role, password_hash, created_at, updated_at FROM users`

func (s *PostgresStore) Create(ctx context.Context, p *models.Principal) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO users (id, email, name, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID.String(), p.Email, p.Name, string(p.Role), p.PasswordHash, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.Principal, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, selectUser+` WHERE id = $1`, userID.String())
	return scanPrincipal(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, selectUser+` WHERE LOWER(email) = LOWER($1)`, email)
	return scanPrincipal(row)
}

func (s *PostgresStore) UpdateName(ctx context.Context, userID id.UserID, name string, at time.Time) (*models.Principal, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, `
		UPDATE users SET name = $2, updated_at = $3 WHERE id = $1
		RETURNING id, email, name, role, password_hash, created_at, updated_at`,
		userID.String(), name, at,
	)
	return scanPrincipal(row)
}

func (s *PostgresStore) UpdateRole(ctx context.Context, userID id.UserID, role models.Role, at time.Time) (*models.Principal, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx, `
		UPDATE users SET role = $2, updated_at = $3 WHERE id = $1
		RETURNING id, email, name, role, password_hash, created_at, updated_at`,
		userID.String(), string(role), at,
	)
	return scanPrincipal(row)
}

// UpdatePassword returns sentinel.ErrNotFound when the user does not exist.
func (s *PostgresStore) UpdatePassword(ctx context.Context, userID id.UserID, hash []byte, at time.Time) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		userID.String(), hash, at,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID id.UserID) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID.String())
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanPrincipal(row *sql.Row) (*models.Principal, error) {
	var (
		p      models.Principal
		userID uuid.UUID
		role   string
	)
	err := row.Scan(&userID, &p.Email, &p.Name, &role, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	p.ID = id.UserID(userID)
	p.Role = models.Role(role)
	return &p, nil
}
