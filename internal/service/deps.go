package service

import (
	"context"
	"time"

	"taskhive/api/internal/cache"
	"taskhive/api/internal/models"
	"taskhive/api/internal/repository"
)

// Storage seams. The pgx repositories satisfy these; tests substitute
// in-memory fakes.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
}

type AccountStore interface {
	Create(ctx context.Context, account models.Account) error
	FindByProviderAccount(ctx context.Context, provider models.Provider, providerAccountID string) (models.Account, error)
	FindByUserAndProvider(ctx context.Context, userID string, provider models.Provider) (models.Account, error)
	ListByUser(ctx context.Context, userID string) ([]models.Account, error)
	UpdatePasswordHash(ctx context.Context, id string, hash []byte) error
	Delete(ctx context.Context, id string) error
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	FindByRefreshTokenHash(ctx context.Context, hash []byte) (models.Session, error)
	FindByPreviousTokenHash(ctx context.Context, hash []byte) (models.Session, error)
	FindByTokenFamily(ctx context.Context, tokenFamily string) ([]models.Session, error)
	FindActiveByUserID(ctx context.Context, userID string) ([]models.Session, error)
	UpdateRefreshTokenHash(ctx context.Context, id string, hash []byte) error
	RotateToken(ctx context.Context, id string, input repository.RotateTokenInput) (models.Session, error)
	Revoke(ctx context.Context, id string, reason string) error
	RevokeByTokenFamily(ctx context.Context, tokenFamily string, reason string) (int, error)
	RevokeAllByUserID(ctx context.Context, userID string, reason string, excludeID string) (int, error)
	DeleteExpired(ctx context.Context) (int, error)
}

type VerificationCodeStore interface {
	Create(ctx context.Context, code models.VerificationCode) error
	FindCurrent(ctx context.Context, userID string, purpose models.CodePurpose) (models.VerificationCode, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	Consume(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) (int, error)
}

type LoginAttemptStore interface {
	Create(ctx context.Context, attempt models.LoginAttempt) error
	CountRecentFailuresByEmail(ctx context.Context, email string, since time.Time) (int, error)
}

type SecurityLogStore interface {
	Create(ctx context.Context, entry models.SecurityLogEntry) error
}

// TxRunner wraps a function in one atomic transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ValidityCache is the session validity cache-aside seam.
type ValidityCache interface {
	Get(ctx context.Context, sessionID string) (cache.SessionValidity, bool)
	Set(ctx context.Context, sessionID string, validity cache.SessionValidity) error
	Delete(ctx context.Context, sessionIDs ...string) error
}

// Cooldown rate-limits repeated requests per key.
type Cooldown interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
	Reset(ctx context.Context, key string) error
}

// RequestMeta attributes an operation to a client for session records and
// audit logging.
type RequestMeta struct {
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
}
