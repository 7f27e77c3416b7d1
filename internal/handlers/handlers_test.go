package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhive/api/internal/apperr"
)

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	return c, rec
}

func TestWriteErrorStatusMapping(t *testing.T) {
	h := HandlerSet{log: zerolog.Nop()}

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{apperr.ErrWeakPassword, http.StatusBadRequest, "WEAK_PASSWORD"},
		{apperr.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
		{apperr.ErrEmailAlreadyRegistered, http.StatusConflict, "EMAIL_ALREADY_REGISTERED"},
		{apperr.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{apperr.ErrAccountLocked, http.StatusTooManyRequests, "ACCOUNT_LOCKED"},
		{apperr.ErrTokenReuseDetected, http.StatusUnauthorized, "TOKEN_REUSE_DETECTED"},
		{apperr.ErrRotationConflict, http.StatusUnauthorized, "REFRESH_ROTATION_CONFLICT"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			c, rec := testContext(t)
			h.writeError(c, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.code)
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	h := HandlerSet{log: zerolog.Nop()}
	c, rec := testContext(t)

	h.writeError(c, errors.New("pq: connection refused to 10.0.0.5"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestRequestMeta(t *testing.T) {
	c, _ := testContext(t)
	c.Request.Header.Set("User-Agent", "cli/1.0")
	c.Request.Header.Set("X-Device-Fingerprint", "fp-123")

	meta := requestMeta(c)
	assert.Equal(t, "cli/1.0", meta.UserAgent)
	assert.Equal(t, "fp-123", meta.DeviceFingerprint)
}
