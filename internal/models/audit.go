package models

import "time"

// LoginAttempt is an immutable record of one login attempt, credential or
// social. Rows are never updated; lockout decisions count recent failures.
type LoginAttempt struct {
	ID            string
	Email         string
	Provider      Provider
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	CreatedAt     time.Time
}

type SecurityEvent string

const (
	EventRegistration       SecurityEvent = "REGISTRATION"
	EventLoginSuccess       SecurityEvent = "LOGIN_SUCCESS"
	EventLoginFailed        SecurityEvent = "LOGIN_FAILED"
	EventLogout             SecurityEvent = "LOGOUT"
	EventSessionRevoked     SecurityEvent = "SESSION_REVOKED"
	EventSessionRevokedAll  SecurityEvent = "SESSION_REVOKED_ALL"
	EventPasswordChanged    SecurityEvent = "PASSWORD_CHANGED"
	EventPasswordReset      SecurityEvent = "PASSWORD_RESET"
	EventEmailVerified      SecurityEvent = "EMAIL_VERIFIED"
	EventSuspiciousActivity SecurityEvent = "SUSPICIOUS_ACTIVITY"
	EventAccountLocked      SecurityEvent = "ACCOUNT_LOCKED"
	EventOAuthAutoLinked    SecurityEvent = "OAUTH_AUTO_LINKED"
	EventOAuthLinkRequired  SecurityEvent = "OAUTH_LINK_REQUIRED"
	EventAccountLinked      SecurityEvent = "ACCOUNT_LINKED"
	EventAccountUnlinked    SecurityEvent = "ACCOUNT_UNLINKED"
)

// SecurityLogEntry is an append-only audit record. Auth decisions never
// read it; forensic queries do.
type SecurityLogEntry struct {
	ID        string
	UserID    *string
	Event     SecurityEvent
	IPAddress string
	UserAgent string
	Metadata  map[string]any
	CreatedAt time.Time
}
