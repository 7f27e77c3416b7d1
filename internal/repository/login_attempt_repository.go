package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"taskhive/api/internal/database"
	"taskhive/api/internal/models"
)

type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(pool *pgxpool.Pool) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: pool}
}

// Create appends one attempt. Rows are immutable.
func (r *LoginAttemptRepository) Create(ctx context.Context, attempt models.LoginAttempt) error {
	const query = `
		INSERT INTO login_attempts (
			id, email, provider, ip_address, user_agent, success, failure_reason, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW()
		)
	`
	_, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query,
		attempt.ID,
		attempt.Email,
		attempt.Provider,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
		attempt.FailureReason,
	)
	return err
}

func (r *LoginAttemptRepository) CountRecentFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*) FROM login_attempts
		WHERE email = $1 AND success = FALSE AND created_at >= $2
	`
	row := database.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, email, since)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *LoginAttemptRepository) CountRecentFailuresByIP(ctx context.Context, ip string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*) FROM login_attempts
		WHERE ip_address = $1 AND success = FALSE AND created_at >= $2
	`
	row := database.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, ip, since)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `DELETE FROM login_attempts WHERE created_at < $1`
	cmd, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}
