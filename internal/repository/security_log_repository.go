package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"taskhive/api/internal/database"
	"taskhive/api/internal/models"
)

type SecurityLogRepository struct {
	pool *pgxpool.Pool
}

func NewSecurityLogRepository(pool *pgxpool.Pool) *SecurityLogRepository {
	return &SecurityLogRepository{pool: pool}
}

func (r *SecurityLogRepository) Create(ctx context.Context, entry models.SecurityLogEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO security_log (
			id, user_id, event, ip_address, user_agent, metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW()
		)
	`
	_, err = database.QuerierFrom(ctx, r.pool).Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Event,
		entry.IPAddress,
		entry.UserAgent,
		metadata,
	)
	return err
}

// ListByIP is a forensic read path; authorization logic never consults the
// security log.
func (r *SecurityLogRepository) ListByIP(ctx context.Context, ip string, since time.Time, limit int) ([]models.SecurityLogEntry, error) {
	const query = `
		SELECT id, user_id, event, ip_address, user_agent, metadata, created_at
		FROM security_log
		WHERE ip_address = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	return r.list(ctx, query, ip, since, limit)
}

func (r *SecurityLogRepository) ListByWindow(ctx context.Context, from, to time.Time, limit int) ([]models.SecurityLogEntry, error) {
	const query = `
		SELECT id, user_id, event, ip_address, user_agent, metadata, created_at
		FROM security_log
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	return r.list(ctx, query, from, to, limit)
}

func (r *SecurityLogRepository) list(ctx context.Context, query string, args ...any) ([]models.SecurityLogEntry, error) {
	rows, err := database.QuerierFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.SecurityLogEntry
	for rows.Next() {
		var entry models.SecurityLogEntry
		var metadata []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Event,
			&entry.IPAddress,
			&entry.UserAgent,
			&metadata,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
