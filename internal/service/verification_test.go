package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhive/api/internal/apperr"
	"taskhive/api/internal/ids"
	"taskhive/api/internal/models"
	"taskhive/api/internal/security"
)

func TestVerificationCodeExpiry(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	userID := ids.New()

	require.NoError(t, h.codes.Create(ctx, models.VerificationCode{
		ID:        ids.New(),
		UserID:    userID,
		Purpose:   models.CodePurposeEmailVerify,
		CodeHash:  security.HashCode("123456"),
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	err := h.verifier.Verify(ctx, userID, "123456", models.CodePurposeEmailVerify)
	require.ErrorIs(t, err, apperr.ErrVerificationCodeWrong)
}

func TestVerificationCodeAttemptLimit(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	userID := ids.New()

	require.NoError(t, h.verifier.Issue(ctx, userID, "pat@example.com", models.CodePurposeEmailVerify))
	code := h.sender.lastCode("pat@example.com", models.CodePurposeEmailVerify)
	require.NotEmpty(t, code)

	for i := 0; i < h.cfg.Verification.MaxAttempts; i++ {
		err := h.verifier.Verify(ctx, userID, "000000", models.CodePurposeEmailVerify)
		require.ErrorIs(t, err, apperr.ErrVerificationCodeWrong)
	}

	// Past the limit even the correct code is dead.
	err := h.verifier.Verify(ctx, userID, code, models.CodePurposeEmailVerify)
	require.ErrorIs(t, err, apperr.ErrTooManyCodeAttempts)

	err = h.verifier.Verify(ctx, userID, code, models.CodePurposeEmailVerify)
	require.ErrorIs(t, err, apperr.ErrVerificationCodeWrong)
}

func TestVerificationCodeSuperseded(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	userID := ids.New()

	require.NoError(t, h.verifier.Issue(ctx, userID, "quinn@example.com", models.CodePurposeEmailVerify))
	oldCode := h.sender.lastCode("quinn@example.com", models.CodePurposeEmailVerify)

	require.NoError(t, h.cooldown.Reset(ctx, "code:"+string(models.CodePurposeEmailVerify)+":"+userID))
	require.NoError(t, h.verifier.Issue(ctx, userID, "quinn@example.com", models.CodePurposeEmailVerify))
	newCode := h.sender.lastCode("quinn@example.com", models.CodePurposeEmailVerify)
	require.NotEqual(t, oldCode, newCode)

	err := h.verifier.Verify(ctx, userID, oldCode, models.CodePurposeEmailVerify)
	require.ErrorIs(t, err, apperr.ErrVerificationCodeWrong)

	require.NoError(t, h.verifier.Verify(ctx, userID, newCode, models.CodePurposeEmailVerify))
}

func TestVerificationPurposesAreIndependent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	userID := ids.New()

	require.NoError(t, h.verifier.Issue(ctx, userID, "ray@example.com", models.CodePurposeEmailVerify))
	require.NoError(t, h.verifier.Issue(ctx, userID, "ray@example.com", models.CodePurposePasswordReset))

	verifyCode := h.sender.lastCode("ray@example.com", models.CodePurposeEmailVerify)
	resetCode := h.sender.lastCode("ray@example.com", models.CodePurposePasswordReset)

	// A code only redeems for the purpose it was issued under.
	err := h.verifier.Verify(ctx, userID, resetCode, models.CodePurposeEmailVerify)
	if resetCode != verifyCode {
		require.ErrorIs(t, err, apperr.ErrVerificationCodeWrong)
	}

	require.NoError(t, h.verifier.Verify(ctx, userID, resetCode, models.CodePurposePasswordReset))

	// The verify-purpose code survives redemption of the reset code.
	code, err := h.codes.FindCurrent(ctx, userID, models.CodePurposeEmailVerify)
	require.NoError(t, err)
	assert.Equal(t, models.CodePurposeEmailVerify, code.Purpose)
}
