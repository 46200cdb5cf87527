package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supratours/virements/internal/platform/db"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, u User) (*User, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

var userUniqueFields = map[string]string{
	"users_email_key": "email",
}

const userColumns = `SELECT id, email, name, password_hash, is_active, is_superuser, last_login_at, created_at FROM users`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.IsActive, &u.IsSuperuser, &u.LastLoginAt, &u.CreatedAt); err != nil {
		return nil, db.TranslateError(err, nil)
	}
	return &u, nil
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, userColumns+` WHERE lower(email) = lower($1)`, email))
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, userColumns+` WHERE id = $1`, id))
}

// Create inserts an active user.
func (r *PGRepository) Create(ctx context.Context, u User) (*User, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, password_hash, is_superuser)
VALUES ($1, $2, $3, $4) RETURNING id, is_active, created_at`, u.Email, u.Name, u.PasswordHash, u.IsSuperuser).
		Scan(&u.ID, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, db.TranslateError(err, userUniqueFields)
	}
	return &u, nil
}

// TouchLogin stamps the last successful login.
func (r *PGRepository) TouchLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	return err
}

var _ Repository = (*PGRepository)(nil)
