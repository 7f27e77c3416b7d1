package apperr

// Sentinel failures shared across services. Handlers map these to HTTP
// statuses by Kind; clients branch on Code.
var (
	ErrEmailAlreadyRegistered = Conflict("EMAIL_ALREADY_REGISTERED", "email already registered")
	ErrAccountAlreadyLinked   = Conflict("ACCOUNT_ALREADY_LINKED", "provider account already linked to another user")

	ErrWeakPassword    = Validation("WEAK_PASSWORD", "password does not meet the password policy")
	ErrInvalidInput    = Validation("INVALID_INPUT", "invalid input")
	ErrUnknownProvider = Validation("UNKNOWN_PROVIDER", "unknown identity provider")

	ErrUserNotFound    = NotFound("USER_NOT_FOUND", "user not found")
	ErrSessionNotFound = NotFound("SESSION_NOT_FOUND", "session not found")
	ErrAccountNotFound = NotFound("ACCOUNT_NOT_FOUND", "linked account not found")

	ErrInvalidCredentials    = Unauthorized("INVALID_CREDENTIALS", "invalid email or password")
	ErrEmailNotVerified      = Unauthorized("EMAIL_NOT_VERIFIED", "email address not verified")
	ErrUserSuspended         = Unauthorized("USER_SUSPENDED", "user account suspended")
	ErrRefreshTokenInvalid   = Unauthorized("REFRESH_TOKEN_INVALID", "refresh token invalid or expired")
	ErrAccessTokenInvalid    = Unauthorized("ACCESS_TOKEN_INVALID", "access token invalid or expired")
	ErrSessionRevoked        = Unauthorized("SESSION_REVOKED", "session revoked")
	ErrVerificationCodeWrong = Unauthorized("VERIFICATION_CODE_INVALID", "verification code invalid or expired")
	ErrProviderTokenInvalid  = Unauthorized("PROVIDER_TOKEN_INVALID", "identity provider rejected the token")
	ErrLinkRequired          = Unauthorized("OAUTH_LINK_REQUIRED", "an account with this email already exists; sign in and link the provider explicitly")
	ErrRotationConflict      = Unauthorized("REFRESH_ROTATION_CONFLICT", "refresh superseded by a concurrent rotation")
	ErrLastAccountUnlink     = Conflict("LAST_LOGIN_METHOD", "cannot unlink the only remaining login method")

	ErrAccountLocked       = RateLimited("ACCOUNT_LOCKED", "too many failed login attempts; try again later")
	ErrResendTooSoon       = RateLimited("RESEND_TOO_SOON", "a code was sent recently; wait before requesting another")
	ErrTooManyCodeAttempts = RateLimited("MAX_VERIFICATION_ATTEMPTS", "too many incorrect attempts; request a new code")

	ErrTokenReuseDetected = Security("TOKEN_REUSE_DETECTED", "refresh token reuse detected; all sessions in the family were revoked")
)
