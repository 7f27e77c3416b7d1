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

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `
	id, user_id, token_family, token_version, refresh_token_hash, previous_token_hash,
	device_fingerprint, ip_address, user_agent, expires_at, revoked_at, revoked_reason,
	last_used_at, created_at`

func (r *SessionRepository) Create(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO sessions (
			id, user_id, token_family, token_version, refresh_token_hash, previous_token_hash,
			device_fingerprint, ip_address, user_agent, expires_at, last_used_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()
		)
	`

	_, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query,
		session.ID,
		session.UserID,
		session.TokenFamily,
		session.TokenVersion,
		session.RefreshTokenHash,
		session.PreviousTokenHash,
		session.DeviceFingerprint,
		session.IPAddress,
		session.UserAgent,
		session.ExpiresAt,
	)
	return err
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions WHERE id = $1
	`
	row := database.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, id)
	return scanSession(row)
}

func (r *SessionRepository) FindByRefreshTokenHash(ctx context.Context, hash []byte) (models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions WHERE refresh_token_hash = $1
	`
	row := database.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, hash)
	return scanSession(row)
}

// FindByPreviousTokenHash recognizes a token already consumed by rotation:
// the replay signal.
func (r *SessionRepository) FindByPreviousTokenHash(ctx context.Context, hash []byte) (models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions WHERE previous_token_hash = $1
	`
	row := database.QuerierFrom(ctx, r.pool).QueryRow(ctx, query, hash)
	return scanSession(row)
}

func (r *SessionRepository) FindByTokenFamily(ctx context.Context, tokenFamily string) ([]models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions WHERE token_family = $1
	`
	return r.list(ctx, query, tokenFamily)
}

func (r *SessionRepository) FindActiveByUserID(ctx context.Context, userID string) ([]models.Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()
		ORDER BY last_used_at DESC
	`
	return r.list(ctx, query, userID)
}

func (r *SessionRepository) UpdateRefreshTokenHash(ctx context.Context, id string, hash []byte) error {
	const query = `
		UPDATE sessions SET refresh_token_hash = $2 WHERE id = $1
	`
	cmd, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query, id, hash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

type RotateTokenInput struct {
	RefreshTokenHash     []byte
	PreviousTokenHash    []byte
	TokenVersion         int
	ExpectedTokenVersion int
	ExpiresAt            time.Time
}

// RotateToken is the optimistic-concurrency guard for refresh rotation:
// the update applies only while the row still carries ExpectedTokenVersion
// and is not revoked. ErrSessionNotFound means the caller lost the race
// (or the row was revoked underneath it) and must treat this request as
// terminally failed, never retried.
func (r *SessionRepository) RotateToken(ctx context.Context, id string, input RotateTokenInput) (models.Session, error) {
	const query = `
		UPDATE sessions
		SET refresh_token_hash = $2,
		    previous_token_hash = $3,
		    token_version = $4,
		    expires_at = $5,
		    last_used_at = NOW()
		WHERE id = $1 AND token_version = $6 AND revoked_at IS NULL
		RETURNING ` + sessionColumns + `
	`
	row := database.QuerierFrom(ctx, r.pool).QueryRow(ctx, query,
		id,
		input.RefreshTokenHash,
		input.PreviousTokenHash,
		input.TokenVersion,
		input.ExpiresAt,
		input.ExpectedTokenVersion,
	)
	return scanSession(row)
}

func (r *SessionRepository) Revoke(ctx context.Context, id string, reason string) error {
	const query = `
		UPDATE sessions
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE id = $1 AND revoked_at IS NULL
	`
	cmd, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query, id, reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) RevokeByTokenFamily(ctx context.Context, tokenFamily string, reason string) (int, error) {
	const query = `
		UPDATE sessions
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE token_family = $1 AND revoked_at IS NULL
	`
	cmd, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query, tokenFamily, reason)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *SessionRepository) RevokeAllByUserID(ctx context.Context, userID string, reason string, excludeID string) (int, error) {
	const query = `
		UPDATE sessions
		SET revoked_at = NOW(), revoked_reason = $2
		WHERE user_id = $1 AND revoked_at IS NULL AND ($3 = '' OR id <> $3)
	`
	cmd, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query, userID, reason, excludeID)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

// DeleteExpired garbage-collects rows that can never authenticate again.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int, error) {
	const query = `
		DELETE FROM sessions
		WHERE expires_at < NOW() OR revoked_at < NOW() - INTERVAL '30 days'
	`
	cmd, err := database.QuerierFrom(ctx, r.pool).Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]models.Session, error) {
	rows, err := database.QuerierFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (models.Session, error) {
	var session models.Session
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.TokenFamily,
		&session.TokenVersion,
		&session.RefreshTokenHash,
		&session.PreviousTokenHash,
		&session.DeviceFingerprint,
		&session.IPAddress,
		&session.UserAgent,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.RevokedReason,
		&session.LastUsedAt,
		&session.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return session, nil
}
