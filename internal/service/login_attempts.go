package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"taskhive/api/internal/ids"
	"taskhive/api/internal/models"
)

// Failure reasons recorded with login attempts.
const (
	FailureInvalidCredentials = "invalid_credentials"
	FailureAccountLocked      = "account_locked"
	FailureUserSuspended      = "user_suspended"
	FailureEmailNotVerified   = "email_not_verified"
	FailureProviderToken      = "provider_token_invalid"
	FailureLinkRequired       = "link_required"
)

// LoginAttemptTracker appends immutable attempt records and drives the
// failure-window lockout.
type LoginAttemptTracker struct {
	store     LoginAttemptStore
	threshold int
	window    time.Duration
	log       zerolog.Logger
}

func NewLoginAttemptTracker(store LoginAttemptStore, threshold int, window time.Duration, log zerolog.Logger) *LoginAttemptTracker {
	return &LoginAttemptTracker{
		store:     store,
		threshold: threshold,
		window:    window,
		log:       log,
	}
}

// Record never fails the surrounding login; a write error is logged.
func (t *LoginAttemptTracker) Record(ctx context.Context, email string, provider models.Provider, meta RequestMeta, success bool, failureReason string) {
	attempt := models.LoginAttempt{
		ID:            ids.New(),
		Email:         email,
		Provider:      provider,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
		Success:       success,
		FailureReason: failureReason,
	}
	if err := t.store.Create(ctx, attempt); err != nil {
		t.log.Error().Err(err).Str("email", email).Msg("login attempt write failed")
	}
}

// Locked reports whether recent failures for email have reached the
// threshold. The check runs before credential verification, so a correct
// password does not unlock the window.
func (t *LoginAttemptTracker) Locked(ctx context.Context, email string) (bool, error) {
	count, err := t.store.CountRecentFailuresByEmail(ctx, email, time.Now().Add(-t.window))
	if err != nil {
		return false, err
	}
	return count >= t.threshold, nil
}
