package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"taskhive/api/internal/apperr"
	"taskhive/api/internal/ids"
	"taskhive/api/internal/models"
	"taskhive/api/internal/oauth"
	"taskhive/api/internal/repository"
)

// OAuthService composes the social login flows around the provider
// verifiers and the account linking policy.
type OAuthService struct {
	users     UserStore
	accounts  AccountStore
	sessions  *SessionManager
	attempts  *LoginAttemptTracker
	audit     *SecurityLog
	verifiers *oauth.Registry
	tx        TxRunner
	log       zerolog.Logger
}

func NewOAuthService(
	users UserStore,
	accounts AccountStore,
	sessions *SessionManager,
	attempts *LoginAttemptTracker,
	audit *SecurityLog,
	verifiers *oauth.Registry,
	tx TxRunner,
	log zerolog.Logger,
) *OAuthService {
	return &OAuthService{
		users:     users,
		accounts:  accounts,
		sessions:  sessions,
		attempts:  attempts,
		audit:     audit,
		verifiers: verifiers,
		tx:        tx,
		log:       log,
	}
}

type ProviderLoginInput struct {
	Provider models.Provider
	Token    string
	Meta     RequestMeta
}

// LoginWithProvider turns a provider-issued token into a session. The
// linking decision table, keyed by (account exists?, user with same
// email?):
//
//	account exists            -> authenticate as the linked user
//	no account, no user       -> register user + account
//	no account, user, trusted provider and verified email -> auto-link
//	no account, user, otherwise -> reject link-required; no account row
//
// Locked and suspended users are rejected before any linking decision is
// acted on.
func (s *OAuthService) LoginWithProvider(ctx context.Context, input ProviderLoginInput) (AuthResult, error) {
	verifier, ok := s.verifiers.Lookup(input.Provider)
	if !ok {
		return AuthResult{}, apperr.ErrUnknownProvider
	}

	profile, err := verifier.Verify(ctx, input.Token)
	if err != nil {
		s.attempts.Record(ctx, "", input.Provider, input.Meta, false, FailureProviderToken)
		return AuthResult{}, apperr.ErrProviderTokenInvalid.Wrap(err)
	}

	email := normalizeEmail(profile.Email)

	account, err := s.accounts.FindByProviderAccount(ctx, input.Provider, profile.ID)
	switch {
	case err == nil:
		return s.loginLinked(ctx, account, email, input)
	case errors.Is(err, repository.ErrAccountNotFound):
		// fall through to the linking decision
	default:
		return AuthResult{}, err
	}

	if email == "" {
		// Without a provider-reported address there is no identity to
		// collide with and no address to register under.
		return AuthResult{}, apperr.Validation("EMAIL_REQUIRED", "identity provider did not supply an email address")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return s.registerNewUser(ctx, profile, email, input)
	case err != nil:
		return AuthResult{}, err
	}

	// Identity collision: status checks come before the linking outcome.
	if rejectErr := s.rejectByStatus(ctx, existing, email, input); rejectErr != nil {
		return AuthResult{}, rejectErr
	}

	if verifier.Trusted() && profile.EmailVerified {
		return s.autoLink(ctx, existing, profile, input)
	}

	s.attempts.Record(ctx, email, input.Provider, input.Meta, false, FailureLinkRequired)
	s.audit.RecordBestEffort(ctx, &existing.ID, models.EventOAuthLinkRequired, input.Meta, map[string]any{
		"provider":      input.Provider,
		"emailVerified": profile.EmailVerified,
		"trusted":       verifier.Trusted(),
	})
	return AuthResult{}, apperr.ErrLinkRequired
}

func (s *OAuthService) loginLinked(ctx context.Context, account models.Account, email string, input ProviderLoginInput) (AuthResult, error) {
	user, err := s.users.GetByID(ctx, account.UserID)
	if err != nil {
		return AuthResult{}, err
	}
	if email == "" {
		email = user.Email
	}

	if err := s.rejectByStatus(ctx, user, email, input); err != nil {
		return AuthResult{}, err
	}

	s.attempts.Record(ctx, email, input.Provider, input.Meta, true, "")
	result, err := s.sessions.Start(ctx, user, input.Meta)
	if err != nil {
		return AuthResult{}, err
	}
	s.audit.RecordBestEffort(ctx, &user.ID, models.EventLoginSuccess, input.Meta, map[string]any{
		"provider":   input.Provider,
		"session_id": result.SessionID,
	})
	return result, nil
}

func (s *OAuthService) rejectByStatus(ctx context.Context, user models.User, email string, input ProviderLoginInput) error {
	switch user.Status {
	case models.UserStatusLocked:
		s.attempts.Record(ctx, email, input.Provider, input.Meta, false, FailureAccountLocked)
		return apperr.ErrAccountLocked
	case models.UserStatusSuspended:
		s.attempts.Record(ctx, email, input.Provider, input.Meta, false, FailureUserSuspended)
		return apperr.ErrUserSuspended
	}
	return nil
}

// registerNewUser creates the user and its provider account atomically.
// Verified-email profiles start active; the rest must verify first.
func (s *OAuthService) registerNewUser(ctx context.Context, profile oauth.VerifiedProfile, email string, input ProviderLoginInput) (AuthResult, error) {
	user := models.User{
		ID:          ids.New(),
		Email:       email,
		DisplayName: profile.Name,
		Status:      models.UserStatusPendingVerify,
	}
	if profile.EmailVerified {
		now := time.Now()
		user.Status = models.UserStatusActive
		user.EmailVerifiedAt = &now
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		account := models.Account{
			ID:                ids.New(),
			UserID:            user.ID,
			Provider:          input.Provider,
			ProviderAccountID: profile.ID,
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			return err
		}
		return s.audit.Record(ctx, &user.ID, models.EventRegistration, input.Meta, map[string]any{
			"provider": input.Provider,
		})
	})
	if err != nil {
		return AuthResult{}, err
	}

	s.attempts.Record(ctx, email, input.Provider, input.Meta, true, "")
	result, err := s.sessions.Start(ctx, user, input.Meta)
	if err != nil {
		return AuthResult{}, err
	}
	s.audit.RecordBestEffort(ctx, &user.ID, models.EventLoginSuccess, input.Meta, map[string]any{
		"provider":   input.Provider,
		"session_id": result.SessionID,
	})
	return result, nil
}

// autoLink attaches the provider account to the existing user: the
// provider cryptographically attested control of the colliding address.
func (s *OAuthService) autoLink(ctx context.Context, user models.User, profile oauth.VerifiedProfile, input ProviderLoginInput) (AuthResult, error) {
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		account := models.Account{
			ID:                ids.New(),
			UserID:            user.ID,
			Provider:          input.Provider,
			ProviderAccountID: profile.ID,
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			return err
		}
		return s.audit.Record(ctx, &user.ID, models.EventOAuthAutoLinked, input.Meta, map[string]any{
			"provider":            input.Provider,
			"provider_account_id": profile.ID,
		})
	})
	if err != nil {
		return AuthResult{}, err
	}

	s.attempts.Record(ctx, user.Email, input.Provider, input.Meta, true, "")
	result, err := s.sessions.Start(ctx, user, input.Meta)
	if err != nil {
		return AuthResult{}, err
	}
	s.audit.RecordBestEffort(ctx, &user.ID, models.EventLoginSuccess, input.Meta, map[string]any{
		"provider":   input.Provider,
		"session_id": result.SessionID,
	})
	return result, nil
}

type LinkAccountInput struct {
	UserID   string
	Provider models.Provider
	Token    string
	Meta     RequestMeta
}

// LinkAccount explicitly attaches a provider identity to the calling user.
func (s *OAuthService) LinkAccount(ctx context.Context, input LinkAccountInput) (models.Account, error) {
	verifier, ok := s.verifiers.Lookup(input.Provider)
	if !ok {
		return models.Account{}, apperr.ErrUnknownProvider
	}

	profile, err := verifier.Verify(ctx, input.Token)
	if err != nil {
		return models.Account{}, apperr.ErrProviderTokenInvalid.Wrap(err)
	}

	existing, err := s.accounts.FindByProviderAccount(ctx, input.Provider, profile.ID)
	if err == nil {
		if existing.UserID == input.UserID {
			return existing, nil
		}
		return models.Account{}, apperr.ErrAccountAlreadyLinked
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return models.Account{}, err
	}

	account := models.Account{
		ID:                ids.New(),
		UserID:            input.UserID,
		Provider:          input.Provider,
		ProviderAccountID: profile.ID,
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Create(ctx, account); err != nil {
			return err
		}
		return s.audit.Record(ctx, &input.UserID, models.EventAccountLinked, input.Meta, map[string]any{
			"provider": input.Provider,
		})
	})
	if err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// UnlinkAccount detaches a provider identity. The last remaining login
// method can never be removed.
func (s *OAuthService) UnlinkAccount(ctx context.Context, userID string, provider models.Provider, meta RequestMeta) error {
	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	var target *models.Account
	for i := range accounts {
		if accounts[i].Provider == provider {
			target = &accounts[i]
			break
		}
	}
	if target == nil {
		return apperr.ErrAccountNotFound
	}
	if len(accounts) <= 1 {
		return apperr.ErrLastAccountUnlink
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Delete(ctx, target.ID); err != nil {
			return err
		}
		return s.audit.Record(ctx, &userID, models.EventAccountUnlinked, meta, map[string]any{
			"provider": provider,
		})
	})
	return err
}

func (s *OAuthService) ListLinkedAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	return s.accounts.ListByUser(ctx, userID)
}
