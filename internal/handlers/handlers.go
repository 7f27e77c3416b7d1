package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"taskhive/api/internal/apperr"
	"taskhive/api/internal/cache"
	"taskhive/api/internal/config"
	"taskhive/api/internal/database"
	"taskhive/api/internal/mail"
	"taskhive/api/internal/middleware"
	"taskhive/api/internal/oauth"
	"taskhive/api/internal/repository"
	"taskhive/api/internal/security"
	"taskhive/api/internal/service"
)

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	auth     *service.AuthService
	social   *service.OAuthService
	exchange *cache.ExchangeCodeStore
	db       *pgxpool.Pool
	redis    *redis.Client
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, redisClient *redis.Client, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	codeRepo := repository.NewVerificationCodeRepository(db)
	attemptRepo := repository.NewLoginAttemptRepository(db)
	logRepo := repository.NewSecurityLogRepository(db)

	tokens := security.NewTokenIssuer(
		cfg.Security.JWTAccessSecret,
		cfg.Security.JWTRefreshSecret,
		cfg.Security.JWTAccessTTL,
		cfg.Security.JWTRefreshTTL,
	)

	validity := cache.NewSessionCache(redisClient, cfg.Security.SessionCacheTTL)
	cooldown := cache.NewCooldownLimiter(redisClient)
	exchange := cache.NewExchangeCodeStore(redisClient, cfg.OAuth.ExchangeCodeTTL)
	tx := database.NewTxRunner(db)

	sessions := service.NewSessionManager(sessionRepo, tokens, validity, log)
	attempts := service.NewLoginAttemptTracker(attemptRepo, cfg.Security.LockoutThreshold, cfg.Security.LockoutWindow, log)
	audit := service.NewSecurityLog(logRepo, log)
	codes := service.NewVerificationCodeService(codeRepo, cooldown, mail.NewLogSender(log), cfg.Verification, log)

	auth := service.NewAuthService(userRepo, accountRepo, sessionRepo, sessions, attempts, codes, audit, tokens, tx, cfg, log)

	verifiers := oauth.NewRegistry(
		oauth.NewGoogleVerifier(cfg.OAuth.Google, oauth.NewRemoteKeySet(cfg.OAuth.Google.JWKSURL, nil)),
		oauth.NewGitHubVerifier(cfg.OAuth.GitHub, nil),
	)
	social := service.NewOAuthService(userRepo, accountRepo, sessions, attempts, audit, verifiers, tx, log)

	return HandlerSet{
		log:      log,
		cfg:      cfg,
		auth:     auth,
		social:   social,
		exchange: exchange,
		db:       db,
		redis:    redisClient,
	}
}

func (h HandlerSet) Routes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/verify-email", h.VerifyEmail)
		auth.POST("/resend-verification", h.ResendVerification)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)
		auth.POST("/:provider/login", h.LoginWithProvider)
		auth.POST("/exchange", h.RedeemExchangeCode)

		authed := v1.Group("", middleware.Auth(h.auth))
		authed.POST("/auth/logout", h.Logout)
		authed.POST("/auth/logout-all", h.LogoutAll)
		authed.POST("/auth/change-password", h.ChangePassword)
		authed.GET("/sessions", h.ListSessions)
		authed.DELETE("/sessions/:id", h.RevokeSession)
		authed.GET("/accounts", h.ListLinkedAccounts)
		authed.POST("/accounts/:provider/link", h.LinkAccount)
		authed.DELETE("/accounts/:provider", h.UnlinkAccount)
	}
}

// writeError maps the error taxonomy to stable HTTP responses. Unexpected
// failures are logged in full and surfaced generically.
func (h HandlerSet) writeError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindRateLimited:
		status = http.StatusTooManyRequests
	case apperr.KindSecurity:
		status = http.StatusUnauthorized
	}

	c.JSON(status, gin.H{"error": appErr.Code, "message": appErr.Message})
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IPAddress:         c.ClientIP(),
		UserAgent:         c.GetHeader("User-Agent"),
		DeviceFingerprint: c.GetHeader("X-Device-Fingerprint"),
	}
}
