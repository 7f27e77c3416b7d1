package service

import (
	"context"
	"errors"
	"time"

	"taskhive/api/internal/apperr"
	"taskhive/api/internal/cache"
	"taskhive/api/internal/repository"
)

// AccessIdentity is what the transport layer learns about an authenticated
// request.
type AccessIdentity struct {
	UserID      string
	Email       string
	SessionID   string
	TokenFamily string
}

// ValidateAccess checks a bearer access token against the session validity
// cache, falling through to the session registry on a miss. A just-revoked
// session may pass until its cache entry expires; that staleness window is
// the cache TTL and is deliberate.
func (s *AuthService) ValidateAccess(ctx context.Context, accessToken string) (AccessIdentity, error) {
	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return AccessIdentity{}, apperr.ErrAccessTokenInvalid.Wrap(err)
	}

	identity := AccessIdentity{
		UserID:      claims.Subject,
		Email:       claims.Email,
		SessionID:   claims.SessionID,
		TokenFamily: claims.TokenFamily,
	}

	validity, ok := s.sessions.validity.Get(ctx, claims.SessionID)
	if !ok {
		session, err := s.sessionRepo.GetByID(ctx, claims.SessionID)
		if err != nil {
			if errors.Is(err, repository.ErrSessionNotFound) {
				return AccessIdentity{}, apperr.ErrSessionRevoked
			}
			return AccessIdentity{}, err
		}
		validity = cache.SessionValidity{
			UserID:    session.UserID,
			ExpiresAt: session.ExpiresAt,
			RevokedAt: session.RevokedAt,
		}
		s.sessions.CacheValidity(ctx, session)
	}

	if validity.UserID != claims.Subject {
		return AccessIdentity{}, apperr.ErrAccessTokenInvalid
	}
	if validity.RevokedAt != nil {
		return AccessIdentity{}, apperr.ErrSessionRevoked
	}
	if time.Now().After(validity.ExpiresAt) {
		return AccessIdentity{}, apperr.ErrSessionRevoked
	}

	return identity, nil
}
