package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskhive/api/internal/database"
	"taskhive/api/internal/models"
)

var ErrCodeNotFound = errors.New("verification code not found")

type VerificationCodeRepository struct {
	pool *pgxpool.Pool
}

func NewVerificationCodeRepository(pool *pgxpool.Pool) *VerificationCodeRepository {
	return &VerificationCodeRepository{pool: pool}
}

// Create stores a fresh code and consumes any prior unconsumed code of the
// same purpose, so only the newest code is redeemable.
func (r *VerificationCodeRepository) Create(ctx context.Context, code models.VerificationCode) error {
	q := database.QuerierFrom(ctx, r.pool)

	const supersede = `
		UPDATE verification_codes
		SET consumed_at = NOW()
		WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL
	`
	if _, err := q.Exec(ctx, supersede, code.UserID, code.Purpose); err != nil {
		return err
	}

	const insert = `
		INSERT INTO verification_codes (
			id, user_id, purpose, code_hash, attempts, expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, 0, $5, NOW()
		)
	`
	_, err := q.Exec(ctx, insert,
		code.ID,
		code.UserID,
		code.Purpose,
		code.CodeHash,
		code.ExpiresAt,
	)
	return err
}

// FindCurrent returns the single unconsumed code for user+purpose.
func (r *VerificationCodeRepository) FindCurrent(ctx context.Context, userID string, purpose models.CodePurpose) (models.VerificationCode, error) {
	const query = `
		SELECT id, user_id, purpose, code_hash, attempts, expires_at, consumed_at, created_at
		FROM verification_codes
		WHERE user_id = $1 AND purpose = $2 AND consumed_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := database.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, userID, purpose)

	var code models.VerificationCode
	if err := row.Scan(
		&code.ID,
		&code.UserID,
		&code.Purpose,
		&code.CodeHash,
		&code.Attempts,
		&code.ExpiresAt,
		&code.ConsumedAt,
		&code.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VerificationCode{}, ErrCodeNotFound
		}
		return models.VerificationCode{}, err
	}
	return code, nil
}

// IncrementAttempts bumps the attempt counter atomically and returns the
// new count.
func (r *VerificationCodeRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	const query = `
		UPDATE verification_codes
		SET attempts = attempts + 1
		WHERE id = $1 AND consumed_at IS NULL
		RETURNING attempts
	`
	row := database.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, id)
	var attempts int
	if err := row.Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCodeNotFound
		}
		return 0, err
	}
	return attempts, nil
}

// Consume marks the code used; it succeeds at most once.
func (r *VerificationCodeRepository) Consume(ctx context.Context, id string) error {
	const query = `
		UPDATE verification_codes
		SET consumed_at = NOW()
		WHERE id = $1 AND consumed_at IS NULL
	`
	cmd, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrCodeNotFound
	}
	return nil
}

func (r *VerificationCodeRepository) DeleteExpired(ctx context.Context) (int, error) {
	const query = `
		DELETE FROM verification_codes
		WHERE expires_at < NOW() OR consumed_at IS NOT NULL
	`
	cmd, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}
