package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	MigrationsPath  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SecurityConfig struct {
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration

	SessionCacheTTL time.Duration

	PasswordMinLength int

	LockoutThreshold int
	LockoutWindow    time.Duration
}

type VerificationConfig struct {
	CodeDigits     int
	CodeTTL        time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
}

// OAuthProviderConfig describes one external identity provider. Trusted
// marks providers whose verification cryptographically attests control of
// the email address.
type OAuthProviderConfig struct {
	ClientID    string
	Issuer      string
	JWKSURL     string
	UserInfoURL string
	EmailsURL   string
	Trusted     bool
	Timeout     time.Duration
}

type OAuthConfig struct {
	Google OAuthProviderConfig
	GitHub OAuthProviderConfig

	ExchangeCodeTTL time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Verification     VerificationConfig
	OAuth            OAuthConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("TASKHIVE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.migrationspath", "migrations")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("security.jwtaccessttl", "15m")
	v.SetDefault("security.jwtrefreshttl", "720h") // 30 days
	v.SetDefault("security.sessioncachettl", "30s")
	v.SetDefault("security.passwordminlength", 8)
	v.SetDefault("security.lockoutthreshold", 5)
	v.SetDefault("security.lockoutwindow", "15m")

	v.SetDefault("verification.codedigits", 6)
	v.SetDefault("verification.codettl", "10m")
	v.SetDefault("verification.maxattempts", 5)
	v.SetDefault("verification.resendcooldown", "60s")

	v.SetDefault("oauth.google.issuer", "https://accounts.google.com")
	v.SetDefault("oauth.google.jwksurl", "https://www.googleapis.com/oauth2/v3/certs")
	v.SetDefault("oauth.google.trusted", true)
	v.SetDefault("oauth.google.timeout", "10s")

	v.SetDefault("oauth.github.userinfourl", "https://api.github.com/user")
	v.SetDefault("oauth.github.emailsurl", "https://api.github.com/user/emails")
	v.SetDefault("oauth.github.trusted", false)
	v.SetDefault("oauth.github.timeout", "10s")

	v.SetDefault("oauth.exchangecodettl", "60s")
}
