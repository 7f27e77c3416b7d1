package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"taskhive/api/internal/apperr"
	"taskhive/api/internal/config"
	"taskhive/api/internal/ids"
	"taskhive/api/internal/models"
	"taskhive/api/internal/repository"
	"taskhive/api/internal/security"
)

// Session revocation reasons.
const (
	ReasonLogout          = "logout"
	ReasonLogoutAll       = "logout_all"
	ReasonRevokedByUser   = "revoked_by_user"
	ReasonPasswordChanged = "password_changed"
	ReasonPasswordReset   = "password_reset"
	ReasonTokenReuse      = "token_reuse_detected"
)

// AuthService composes the credential flows: registration, verification,
// login with lockout, token refresh with reuse detection, and password
// lifecycle.
type AuthService struct {
	users       UserStore
	accounts    AccountStore
	sessionRepo SessionStore
	sessions    *SessionManager
	attempts    *LoginAttemptTracker
	codes       *VerificationCodeService
	audit       *SecurityLog
	tokens      *security.TokenIssuer
	tx          TxRunner
	cfg         *config.AppConfig
	log         zerolog.Logger
}

func NewAuthService(
	users UserStore,
	accounts AccountStore,
	sessionRepo SessionStore,
	sessions *SessionManager,
	attempts *LoginAttemptTracker,
	codes *VerificationCodeService,
	audit *SecurityLog,
	tokens *security.TokenIssuer,
	tx TxRunner,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		accounts:    accounts,
		sessionRepo: sessionRepo,
		sessions:    sessions,
		attempts:    attempts,
		codes:       codes,
		audit:       audit,
		tokens:      tokens,
		tx:          tx,
		cfg:         cfg,
		log:         log,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (s *AuthService) checkPasswordPolicy(password string) error {
	if len(password) < s.cfg.Security.PasswordMinLength {
		return apperr.ErrWeakPassword
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return apperr.ErrWeakPassword
	}
	return nil
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Meta        RequestMeta
}

type RegisterResult struct {
	User models.User
}

// Register creates a pending user plus its credential account in one
// transaction, then issues the email verification code. Registering the
// same email twice is always a conflict.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return RegisterResult{}, apperr.ErrInvalidInput
	}
	if err := s.checkPasswordPolicy(input.Password); err != nil {
		return RegisterResult{}, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return RegisterResult{}, apperr.ErrEmailAlreadyRegistered
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return RegisterResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return RegisterResult{}, err
	}

	user := models.User{
		ID:          ids.New(),
		Email:       email,
		DisplayName: input.DisplayName,
		Status:      models.UserStatusPendingVerify,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		account := models.Account{
			ID:                ids.New(),
			UserID:            user.ID,
			Provider:          models.ProviderCredential,
			ProviderAccountID: email,
			PasswordHash:      passwordHash,
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			return err
		}
		return s.audit.Record(ctx, &user.ID, models.EventRegistration, input.Meta, map[string]any{
			"provider": models.ProviderCredential,
		})
	})
	if err != nil {
		return RegisterResult{}, err
	}

	// Code creation and delivery sit outside the transaction: the account
	// is committed either way and the user can always retry via resend.
	if err := s.codes.Issue(ctx, user.ID, email, models.CodePurposeEmailVerify); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("issue verification code failed")
	}

	return RegisterResult{User: user}, nil
}

type VerifyEmailInput struct {
	Email string
	Code  string
	Meta  RequestMeta
}

// VerifyEmail redeems the emailed code, activates the user, and opens the
// first session.
func (s *AuthService) VerifyEmail(ctx context.Context, input VerifyEmailInput) (AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, apperr.ErrVerificationCodeWrong
		}
		return AuthResult{}, err
	}

	// A suspended or locked user must not verify their way back in, even
	// with a code issued before the status changed.
	switch user.Status {
	case models.UserStatusLocked:
		return AuthResult{}, apperr.ErrAccountLocked
	case models.UserStatusSuspended:
		return AuthResult{}, apperr.ErrUserSuspended
	}

	if err := s.codes.Verify(ctx, user.ID, input.Code, models.CodePurposeEmailVerify); err != nil {
		return AuthResult{}, err
	}

	now := time.Now()
	if err := s.users.MarkEmailVerified(ctx, user.ID, now); err != nil {
		return AuthResult{}, err
	}
	user.Status = models.UserStatusActive
	user.EmailVerifiedAt = &now

	s.audit.RecordBestEffort(ctx, &user.ID, models.EventEmailVerified, input.Meta, nil)

	return s.sessions.Start(ctx, user, input.Meta)
}

// ResendVerification issues a fresh code, superseding the previous one.
// Requests inside the cooldown window are rate limited.
func (s *AuthService) ResendVerification(ctx context.Context, email string, meta RequestMeta) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Do not reveal whether the address is registered.
			return nil
		}
		return err
	}
	if user.Status != models.UserStatusPendingVerify {
		return apperr.ErrInvalidInput
	}
	return s.codes.Issue(ctx, user.ID, user.Email, models.CodePurposeEmailVerify)
}

type LoginInput struct {
	Email    string
	Password string
	Meta     RequestMeta
}

// Login authenticates a credential user. The lockout check runs before
// password verification, so once the failure threshold is reached within
// the window even a correct password fails until the window elapses.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	email := normalizeEmail(input.Email)

	locked, err := s.attempts.Locked(ctx, email)
	if err != nil {
		return AuthResult{}, err
	}
	if locked {
		s.attempts.Record(ctx, email, models.ProviderCredential, input.Meta, false, FailureAccountLocked)
		s.audit.RecordBestEffort(ctx, nil, models.EventAccountLocked, input.Meta, map[string]any{"email": email})
		return AuthResult{}, apperr.ErrAccountLocked
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.attempts.Record(ctx, email, models.ProviderCredential, input.Meta, false, FailureInvalidCredentials)
			s.audit.RecordBestEffort(ctx, nil, models.EventLoginFailed, input.Meta, map[string]any{
				"email":  email,
				"reason": FailureInvalidCredentials,
			})
			return AuthResult{}, apperr.ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	if err := s.rejectByStatus(ctx, user, email, models.ProviderCredential, input.Meta); err != nil {
		return AuthResult{}, err
	}

	account, err := s.accounts.FindByUserAndProvider(ctx, user.ID, models.ProviderCredential)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.attempts.Record(ctx, email, models.ProviderCredential, input.Meta, false, FailureInvalidCredentials)
			s.audit.RecordBestEffort(ctx, &user.ID, models.EventLoginFailed, input.Meta, map[string]any{
				"reason": FailureInvalidCredentials,
			})
			return AuthResult{}, apperr.ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	if !security.VerifyPassword(input.Password, account.PasswordHash) {
		s.attempts.Record(ctx, email, models.ProviderCredential, input.Meta, false, FailureInvalidCredentials)
		s.audit.RecordBestEffort(ctx, &user.ID, models.EventLoginFailed, input.Meta, map[string]any{
			"reason": FailureInvalidCredentials,
		})
		return AuthResult{}, apperr.ErrInvalidCredentials
	}

	if security.NeedsRehash(account.PasswordHash) {
		if newHash, hashErr := security.HashPassword(input.Password); hashErr == nil {
			if err := s.accounts.UpdatePasswordHash(ctx, account.ID, newHash); err != nil {
				s.log.Warn().Err(err).Str("user_id", user.ID).Msg("password rehash failed")
			}
		}
	}

	s.attempts.Record(ctx, email, models.ProviderCredential, input.Meta, true, "")

	result, err := s.sessions.Start(ctx, user, input.Meta)
	if err != nil {
		return AuthResult{}, err
	}
	s.audit.RecordBestEffort(ctx, &user.ID, models.EventLoginSuccess, input.Meta, map[string]any{
		"provider":   models.ProviderCredential,
		"session_id": result.SessionID,
	})
	return result, nil
}

// rejectByStatus records and rejects logins for users that must not
// authenticate, regardless of credentials.
func (s *AuthService) rejectByStatus(ctx context.Context, user models.User, email string, provider models.Provider, meta RequestMeta) error {
	switch user.Status {
	case models.UserStatusLocked:
		s.attempts.Record(ctx, email, provider, meta, false, FailureAccountLocked)
		return apperr.ErrAccountLocked
	case models.UserStatusSuspended:
		s.attempts.Record(ctx, email, provider, meta, false, FailureUserSuspended)
		return apperr.ErrUserSuspended
	case models.UserStatusPendingVerify:
		if provider == models.ProviderCredential {
			s.attempts.Record(ctx, email, provider, meta, false, FailureEmailNotVerified)
			return apperr.ErrEmailNotVerified
		}
	}
	return nil
}

type RefreshInput struct {
	RefreshToken string
	Meta         RequestMeta
}

// Refresh rotates the presented refresh token. The protocol:
//
//  1. Signature, type, and expiry checks fail closed.
//  2. The token's hash must be the session's current hash. A hash that only
//     matches a previous hash was already spent: the whole family is
//     revoked and the request fails as reuse.
//  3. The rotation is a conditional update on the token version. Losing
//     that race is terminal, never retried, and is reported distinctly
//     from reuse.
func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (AuthResult, error) {
	claims, err := s.tokens.VerifyRefreshToken(input.RefreshToken)
	if err != nil {
		return AuthResult{}, apperr.ErrRefreshTokenInvalid.Wrap(err)
	}

	hash := security.HashRefreshToken(input.RefreshToken)

	session, err := s.sessionRepo.FindByRefreshTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return AuthResult{}, s.handleMissingCurrentHash(ctx, hash, input.Meta)
		}
		return AuthResult{}, err
	}

	if session.ID != claims.SessionID || session.TokenFamily != claims.TokenFamily {
		return AuthResult{}, apperr.ErrRefreshTokenInvalid
	}
	if session.RevokedAt != nil {
		return AuthResult{}, apperr.ErrSessionRevoked
	}
	if time.Now().After(session.ExpiresAt) {
		return AuthResult{}, apperr.ErrRefreshTokenInvalid
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return AuthResult{}, err
	}
	if user.Status == models.UserStatusSuspended {
		return AuthResult{}, apperr.ErrUserSuspended
	}

	pair, err := s.tokens.GeneratePair(user.ID, user.Email, session.ID, session.TokenFamily)
	if err != nil {
		return AuthResult{}, err
	}

	rotated, err := s.sessionRepo.RotateToken(ctx, session.ID, repository.RotateTokenInput{
		RefreshTokenHash:     security.HashRefreshToken(pair.RefreshToken),
		PreviousTokenHash:    hash,
		TokenVersion:         session.TokenVersion + 1,
		ExpectedTokenVersion: session.TokenVersion,
		ExpiresAt:            time.Now().Add(s.tokens.RefreshTTL()),
	})
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return AuthResult{}, s.classifyRotationLoss(ctx, session.ID, input.Meta)
		}
		return AuthResult{}, err
	}

	s.sessions.CacheValidity(ctx, rotated)

	return AuthResult{
		User:         user,
		SessionID:    rotated.ID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// handleMissingCurrentHash decides between replay and plain not-found when
// the presented hash is no session's current hash.
func (s *AuthService) handleMissingCurrentHash(ctx context.Context, hash []byte, meta RequestMeta) error {
	prev, err := s.sessionRepo.FindByPreviousTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return apperr.ErrRefreshTokenInvalid
		}
		return err
	}

	// The token was already spent by an earlier rotation: likely theft.
	// Revoke every session descending from this login.
	count, err := s.sessionRepo.RevokeByTokenFamily(ctx, prev.TokenFamily, ReasonTokenReuse)
	if err != nil {
		return err
	}

	family, err := s.sessionRepo.FindByTokenFamily(ctx, prev.TokenFamily)
	if err == nil {
		sessionIDs := make([]string, 0, len(family))
		for _, member := range family {
			sessionIDs = append(sessionIDs, member.ID)
		}
		s.sessions.Invalidate(ctx, sessionIDs...)
	}

	s.audit.RecordBestEffort(ctx, &prev.UserID, models.EventSuspiciousActivity, meta, map[string]any{
		"reason":       "refresh_token_reuse",
		"token_family": prev.TokenFamily,
		"revoked":      count,
	})
	s.log.Warn().
		Str("user_id", prev.UserID).
		Str("token_family", prev.TokenFamily).
		Int("revoked", count).
		Msg("refresh token reuse detected")

	return apperr.ErrTokenReuseDetected
}

// classifyRotationLoss distinguishes a lost optimistic race from a
// concurrent revocation; the two are logged distinctly and both terminal.
func (s *AuthService) classifyRotationLoss(ctx context.Context, sessionID string, meta RequestMeta) error {
	current, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err == nil && current.RevokedAt != nil {
		s.log.Warn().Str("session_id", sessionID).Str("reason", current.RevokedReason).
			Msg("rotation rejected: session revoked concurrently")
		if current.RevokedReason == ReasonTokenReuse {
			return apperr.ErrTokenReuseDetected
		}
		return apperr.ErrSessionRevoked
	}

	s.log.Warn().Str("session_id", sessionID).Msg("rotation rejected: lost optimistic version race")
	s.audit.RecordBestEffort(ctx, nil, models.EventSuspiciousActivity, meta, map[string]any{
		"reason":     "concurrent_rotation",
		"session_id": sessionID,
	})
	return apperr.ErrRotationConflict
}

func (s *AuthService) Logout(ctx context.Context, sessionID string, meta RequestMeta) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return apperr.ErrSessionNotFound
		}
		return err
	}

	if err := s.sessionRepo.Revoke(ctx, sessionID, ReasonLogout); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return err
	}
	s.sessions.Invalidate(ctx, sessionID)
	s.audit.RecordBestEffort(ctx, &session.UserID, models.EventLogout, meta, map[string]any{
		"session_id": sessionID,
	})
	return nil
}

// LogoutAll revokes every active session for the user except, optionally,
// the calling one.
func (s *AuthService) LogoutAll(ctx context.Context, userID string, excludeSessionID string, meta RequestMeta) (int, error) {
	active, err := s.sessionRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}

	count, err := s.sessionRepo.RevokeAllByUserID(ctx, userID, ReasonLogoutAll, excludeSessionID)
	if err != nil {
		return 0, err
	}

	sessionIDs := make([]string, 0, len(active))
	for _, session := range active {
		if session.ID == excludeSessionID {
			continue
		}
		sessionIDs = append(sessionIDs, session.ID)
	}
	s.sessions.Invalidate(ctx, sessionIDs...)

	s.audit.RecordBestEffort(ctx, &userID, models.EventSessionRevokedAll, meta, map[string]any{
		"revoked":  count,
		"excluded": excludeSessionID,
	})
	return count, nil
}

func (s *AuthService) GetActiveSessions(ctx context.Context, userID string) ([]models.Session, error) {
	return s.sessionRepo.FindActiveByUserID(ctx, userID)
}

// RevokeSession revokes one of the caller's own sessions.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string, meta RequestMeta) error {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return apperr.ErrSessionNotFound
		}
		return err
	}
	if session.UserID != userID {
		return apperr.ErrSessionNotFound
	}

	if err := s.sessionRepo.Revoke(ctx, sessionID, ReasonRevokedByUser); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return err
	}
	s.sessions.Invalidate(ctx, sessionID)
	s.audit.RecordBestEffort(ctx, &userID, models.EventSessionRevoked, meta, map[string]any{
		"session_id": sessionID,
	})
	return nil
}

// ForgotPassword issues a reset code. An unknown address is not revealed.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, meta RequestMeta) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil
		}
		return err
	}
	if user.Status == models.UserStatusSuspended {
		return nil
	}
	return s.codes.Issue(ctx, user.ID, user.Email, models.CodePurposePasswordReset)
}

type ResetPasswordInput struct {
	Email       string
	Code        string
	NewPassword string
	Meta        RequestMeta
}

// ResetPassword redeems a reset code, rewrites the credential hash, and
// revokes every session in one transaction.
func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if err := s.checkPasswordPolicy(input.NewPassword); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperr.ErrVerificationCodeWrong
		}
		return err
	}

	switch user.Status {
	case models.UserStatusLocked:
		return apperr.ErrAccountLocked
	case models.UserStatusSuspended:
		return apperr.ErrUserSuspended
	}

	if err := s.codes.Verify(ctx, user.ID, input.Code, models.CodePurposePasswordReset); err != nil {
		return err
	}

	newHash, err := security.HashPassword(input.NewPassword)
	if err != nil {
		return err
	}

	var revoked []models.Session
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		account, err := s.accounts.FindByUserAndProvider(ctx, user.ID, models.ProviderCredential)
		if err != nil {
			if !errors.Is(err, repository.ErrAccountNotFound) {
				return err
			}
			// Social-only user setting a password for the first time.
			return s.accounts.Create(ctx, models.Account{
				ID:                ids.New(),
				UserID:            user.ID,
				Provider:          models.ProviderCredential,
				ProviderAccountID: user.Email,
				PasswordHash:      newHash,
			})
		}
		if err := s.accounts.UpdatePasswordHash(ctx, account.ID, newHash); err != nil {
			return err
		}
		revoked, err = s.sessionRepo.FindActiveByUserID(ctx, user.ID)
		if err != nil {
			return err
		}
		if _, err := s.sessionRepo.RevokeAllByUserID(ctx, user.ID, ReasonPasswordReset, ""); err != nil {
			return err
		}
		return s.audit.Record(ctx, &user.ID, models.EventPasswordReset, input.Meta, nil)
	})
	if err != nil {
		return err
	}

	sessionIDs := make([]string, 0, len(revoked))
	for _, session := range revoked {
		sessionIDs = append(sessionIDs, session.ID)
	}
	s.sessions.Invalidate(ctx, sessionIDs...)
	return nil
}

type ChangePasswordInput struct {
	UserID          string
	SessionID       string
	CurrentPassword string
	NewPassword     string
	Meta            RequestMeta
}

// ChangePassword verifies the current password, rewrites the hash, and
// revokes every other session so a stolen password stops working
// everywhere at once.
func (s *AuthService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if err := s.checkPasswordPolicy(input.NewPassword); err != nil {
		return err
	}

	account, err := s.accounts.FindByUserAndProvider(ctx, input.UserID, models.ProviderCredential)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return apperr.ErrAccountNotFound
		}
		return err
	}

	if !security.VerifyPassword(input.CurrentPassword, account.PasswordHash) {
		return apperr.ErrInvalidCredentials
	}

	newHash, err := security.HashPassword(input.NewPassword)
	if err != nil {
		return err
	}

	var revoked []models.Session
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.UpdatePasswordHash(ctx, account.ID, newHash); err != nil {
			return err
		}
		revoked, err = s.sessionRepo.FindActiveByUserID(ctx, input.UserID)
		if err != nil {
			return err
		}
		if _, err := s.sessionRepo.RevokeAllByUserID(ctx, input.UserID, ReasonPasswordChanged, input.SessionID); err != nil {
			return err
		}
		return s.audit.Record(ctx, &input.UserID, models.EventPasswordChanged, input.Meta, nil)
	})
	if err != nil {
		return err
	}

	sessionIDs := make([]string, 0, len(revoked))
	for _, session := range revoked {
		if session.ID == input.SessionID {
			continue
		}
		sessionIDs = append(sessionIDs, session.ID)
	}
	s.sessions.Invalidate(ctx, sessionIDs...)
	return nil
}
