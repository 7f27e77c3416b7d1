package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"taskhive/api/internal/config"
	"taskhive/api/internal/models"
	"taskhive/api/internal/security"
)

type harness struct {
	users    *fakeUserStore
	accounts *fakeAccountStore
	sessions *fakeSessionStore
	codes    *fakeCodeStore
	attempts *fakeAttemptStore
	audit    *fakeSecurityLogStore
	validity *fakeValidityCache
	cooldown *fakeCooldown
	sender   *capturingSender
	tokens   *security.TokenIssuer
	manager  *SessionManager
	verifier *VerificationCodeService
	tracker  *LoginAttemptTracker
	auth     *AuthService
	cfg      *config.AppConfig
}

func newHarness() *harness {
	cfg := &config.AppConfig{
		Security: config.SecurityConfig{
			JWTAccessSecret:   "test-access-secret",
			JWTRefreshSecret:  "test-refresh-secret",
			JWTAccessTTL:      5 * time.Minute,
			JWTRefreshTTL:     24 * time.Hour,
			SessionCacheTTL:   30 * time.Second,
			PasswordMinLength: 8,
			LockoutThreshold:  5,
			LockoutWindow:     15 * time.Minute,
		},
		Verification: config.VerificationConfig{
			CodeDigits:     6,
			CodeTTL:        10 * time.Minute,
			MaxAttempts:    5,
			ResendCooldown: time.Minute,
		},
	}

	log := zerolog.Nop()
	h := &harness{
		users:    newFakeUserStore(),
		accounts: newFakeAccountStore(),
		sessions: newFakeSessionStore(),
		codes:    newFakeCodeStore(),
		attempts: newFakeAttemptStore(),
		audit:    newFakeSecurityLogStore(),
		validity: newFakeValidityCache(),
		cooldown: newFakeCooldown(),
		sender:   newCapturingSender(),
		cfg:      cfg,
	}
	h.tokens = security.NewTokenIssuer(
		cfg.Security.JWTAccessSecret,
		cfg.Security.JWTRefreshSecret,
		cfg.Security.JWTAccessTTL,
		cfg.Security.JWTRefreshTTL,
	)
	h.manager = NewSessionManager(h.sessions, h.tokens, h.validity, log)
	h.verifier = NewVerificationCodeService(h.codes, h.cooldown, h.sender, cfg.Verification, log)
	h.tracker = NewLoginAttemptTracker(h.attempts, cfg.Security.LockoutThreshold, cfg.Security.LockoutWindow, log)
	audit := NewSecurityLog(h.audit, log)
	h.auth = NewAuthService(
		h.users, h.accounts, h.sessions, h.manager, h.tracker, h.verifier,
		audit, h.tokens, passthroughTx{}, cfg, log,
	)
	return h
}

var testMeta = RequestMeta{
	IPAddress:         "203.0.113.7",
	UserAgent:         "test-agent",
	DeviceFingerprint: "device-1",
}

// registerActiveUser walks the register-then-verify flow so tests start
// from an active credential user.
func (h *harness) registerActiveUser(email, password string) (AuthResult, error) {
	ctx := context.Background()
	if _, err := h.auth.Register(ctx, RegisterInput{
		Email:       email,
		Password:    password,
		DisplayName: "Test User",
		Meta:        testMeta,
	}); err != nil {
		return AuthResult{}, err
	}
	code := h.sender.lastCode(email, models.CodePurposeEmailVerify)
	return h.auth.VerifyEmail(ctx, VerifyEmailInput{Email: email, Code: code, Meta: testMeta})
}
