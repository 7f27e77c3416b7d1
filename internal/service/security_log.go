package service

import (
	"context"

	"github.com/rs/zerolog"

	"taskhive/api/internal/ids"
	"taskhive/api/internal/models"
)

// SecurityLog appends audit records for sensitive transitions. Auth
// decisions only ever write here.
type SecurityLog struct {
	store SecurityLogStore
	log   zerolog.Logger
}

func NewSecurityLog(store SecurityLogStore, log zerolog.Logger) *SecurityLog {
	return &SecurityLog{store: store, log: log}
}

// Record appends one entry. The error is returned so transactional callers
// abort with the rest of the write set.
func (l *SecurityLog) Record(ctx context.Context, userID *string, event models.SecurityEvent, meta RequestMeta, metadata map[string]any) error {
	entry := models.SecurityLogEntry{
		ID:        ids.New(),
		UserID:    userID,
		Event:     event,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Metadata:  metadata,
	}
	return l.store.Create(ctx, entry)
}

// RecordBestEffort is for non-transactional side effects where an audit
// write failure must not fail the operation.
func (l *SecurityLog) RecordBestEffort(ctx context.Context, userID *string, event models.SecurityEvent, meta RequestMeta, metadata map[string]any) {
	if err := l.Record(ctx, userID, event, meta, metadata); err != nil {
		l.log.Error().Err(err).Str("event", string(event)).Msg("security log write failed")
	}
}
