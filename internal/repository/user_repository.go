package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskhive/api/internal/database"
	"taskhive/api/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, email, display_name, status, email_verified_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW(), NOW()
		)
	`

	_, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		user.Status,
		user.EmailVerifiedAt,
	)
	return err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
		SELECT id, email, display_name, status, email_verified_at, created_at, updated_at
		FROM users WHERE email = $1
	`
	row := database.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, email)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `
		SELECT id, email, display_name, status, email_verified_at, created_at, updated_at
		FROM users WHERE id = $1
	`
	row := database.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, id)
	return scanUser(row)
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Status,
		&user.EmailVerifiedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	const query = `
		UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1
	`
	cmd, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MarkEmailVerified stamps the verification time and promotes the user to
// active, but only from pending: a suspended or locked status survives
// verification.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE users
		SET status = CASE WHEN status = $2 THEN $3 ELSE status END,
		    email_verified_at = $4,
		    updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query, id, models.UserStatusPendingVerify, models.UserStatusActive, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
