package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"taskhive/api/internal/apperr"
	"taskhive/api/internal/config"
	"taskhive/api/internal/ids"
	"taskhive/api/internal/mail"
	"taskhive/api/internal/models"
	"taskhive/api/internal/repository"
	"taskhive/api/internal/security"
)

// VerificationCodeService issues and redeems one-time numeric codes for
// email verification and password reset.
type VerificationCodeService struct {
	codes    VerificationCodeStore
	cooldown Cooldown
	sender   mail.Sender
	cfg      config.VerificationConfig
	log      zerolog.Logger
}

func NewVerificationCodeService(
	codes VerificationCodeStore,
	cooldown Cooldown,
	sender mail.Sender,
	cfg config.VerificationConfig,
	log zerolog.Logger,
) *VerificationCodeService {
	return &VerificationCodeService{
		codes:    codes,
		cooldown: cooldown,
		sender:   sender,
		cfg:      cfg,
		log:      log,
	}
}

func cooldownKey(userID string, purpose models.CodePurpose) string {
	return "code:" + string(purpose) + ":" + userID
}

// Issue stores a new hashed code, superseding any prior unconsumed code of
// the same purpose, and mails it. A send failure is logged, not surfaced:
// the committed code stays redeemable and the user can resend later.
func (s *VerificationCodeService) Issue(ctx context.Context, userID, email string, purpose models.CodePurpose) error {
	ok, err := s.cooldown.Allow(ctx, cooldownKey(userID, purpose), s.cfg.ResendCooldown)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrResendTooSoon
	}

	code, err := security.GenerateNumericCode(s.cfg.CodeDigits)
	if err != nil {
		return err
	}

	record := models.VerificationCode{
		ID:        ids.New(),
		UserID:    userID,
		Purpose:   purpose,
		CodeHash:  security.HashCode(code),
		ExpiresAt: time.Now().Add(s.cfg.CodeTTL),
	}
	if err := s.codes.Create(ctx, record); err != nil {
		return err
	}

	if err := s.sender.Send(ctx, email, purpose, code); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("purpose", string(purpose)).
			Msg("verification code delivery failed")
	}
	return nil
}

// Verify redeems a code exactly once. Attempts increment atomically before
// the comparison; exceeding the maximum invalidates the code outright.
func (s *VerificationCodeService) Verify(ctx context.Context, userID, code string, purpose models.CodePurpose) error {
	current, err := s.codes.FindCurrent(ctx, userID, purpose)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return apperr.ErrVerificationCodeWrong
		}
		return err
	}

	if time.Now().After(current.ExpiresAt) {
		return apperr.ErrVerificationCodeWrong
	}

	attempts, err := s.codes.IncrementAttempts(ctx, current.ID)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return apperr.ErrVerificationCodeWrong
		}
		return err
	}
	if attempts > s.cfg.MaxAttempts {
		if err := s.codes.Consume(ctx, current.ID); err != nil && !errors.Is(err, repository.ErrCodeNotFound) {
			return err
		}
		return apperr.ErrTooManyCodeAttempts
	}

	if !security.CodeHashEqual(current.CodeHash, security.HashCode(code)) {
		return apperr.ErrVerificationCodeWrong
	}

	if err := s.codes.Consume(ctx, current.ID); err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			// Lost a race with a concurrent redemption; the code was
			// consumed, just not by this request.
			return apperr.ErrVerificationCodeWrong
		}
		return err
	}

	if err := s.cooldown.Reset(ctx, cooldownKey(userID, purpose)); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("cooldown reset failed")
	}
	return nil
}

func (s *VerificationCodeService) DeleteExpired(ctx context.Context) (int, error) {
	return s.codes.DeleteExpired(ctx)
}
