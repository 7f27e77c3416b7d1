package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"taskhive/api/internal/cache"
	"taskhive/api/internal/ids"
	"taskhive/api/internal/models"
	"taskhive/api/internal/security"
)

// AuthResult is the success payload of every login-family operation.
type AuthResult struct {
	User         models.User
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// SessionManager owns session lifecycle mechanics shared by the credential
// and OAuth orchestrators.
type SessionManager struct {
	sessions SessionStore
	tokens   *security.TokenIssuer
	validity ValidityCache
	log      zerolog.Logger
}

func NewSessionManager(sessions SessionStore, tokens *security.TokenIssuer, validity ValidityCache, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		tokens:   tokens,
		validity: validity,
		log:      log,
	}
}

// Start opens a new device session and mints its first token pair. The row
// is created with a placeholder hash so the uniqueness constraint holds
// before the real refresh token exists, then updated in place.
func (m *SessionManager) Start(ctx context.Context, user models.User, meta RequestMeta) (AuthResult, error) {
	placeholder, err := security.PlaceholderTokenHash()
	if err != nil {
		return AuthResult{}, err
	}

	session := models.Session{
		ID:                ids.New(),
		UserID:            user.ID,
		TokenFamily:       security.NewTokenFamily(),
		TokenVersion:      1,
		RefreshTokenHash:  placeholder,
		DeviceFingerprint: meta.DeviceFingerprint,
		IPAddress:         meta.IPAddress,
		UserAgent:         meta.UserAgent,
		ExpiresAt:         time.Now().Add(m.tokens.RefreshTTL()),
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	pair, err := m.tokens.GeneratePair(user.ID, user.Email, session.ID, session.TokenFamily)
	if err != nil {
		return AuthResult{}, err
	}

	if err := m.sessions.UpdateRefreshTokenHash(ctx, session.ID, security.HashRefreshToken(pair.RefreshToken)); err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		User:         user,
		SessionID:    session.ID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// Invalidate drops cached validity entries after any revocation so the
// staleness window shrinks to the next request.
func (m *SessionManager) Invalidate(ctx context.Context, sessionIDs ...string) {
	if err := m.validity.Delete(ctx, sessionIDs...); err != nil {
		m.log.Warn().Err(err).Msg("session cache invalidation failed")
	}
}

// CacheValidity repopulates the cache-aside entry for a session.
func (m *SessionManager) CacheValidity(ctx context.Context, session models.Session) {
	err := m.validity.Set(ctx, session.ID, cache.SessionValidity{
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
		RevokedAt: session.RevokedAt,
	})
	if err != nil {
		m.log.Warn().Err(err).Str("session_id", session.ID).Msg("session cache write failed")
	}
}
