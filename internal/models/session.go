package models

import "time"

// Session is one logical device login. TokenFamily is shared by every
// refresh token descending from the original login; TokenVersion only
// increases; PreviousTokenHash holds the hash consumed by the latest
// rotation so a replayed token can be recognized.
type Session struct {
	ID                string
	UserID            string
	TokenFamily       string
	TokenVersion      int
	RefreshTokenHash  []byte
	PreviousTokenHash []byte
	DeviceFingerprint string
	IPAddress         string
	UserAgent         string
	ExpiresAt         time.Time
	RevokedAt         *time.Time
	RevokedReason     string
	LastUsedAt        time.Time
	CreatedAt         time.Time
}

// Active reports whether the session can still authenticate requests.
// A revoked session is terminal.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
