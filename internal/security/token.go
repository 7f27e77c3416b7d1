package security

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/ksuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims is the payload of both access and refresh tokens. TokenType
// discriminates the two so one can never be presented as the other.
type Claims struct {
	Email       string `json:"email,omitempty"`
	SessionID   string `json:"sid"`
	TokenFamily string `json:"tfam"`
	TokenType   string `json:"typ"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access token lifetime, seconds
}

// TokenIssuer signs and verifies paired access/refresh tokens.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewTokenIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// NewTokenFamily returns an opaque id shared by all refresh tokens
// descending from one login.
func NewTokenFamily() string {
	return ksuid.New().String()
}

func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

func (t *TokenIssuer) GeneratePair(userID, email, sessionID, tokenFamily string) (TokenPair, error) {
	now := time.Now()

	access, err := t.sign(t.accessSecret, Claims{
		Email:       email,
		SessionID:   sessionID,
		TokenFamily: tokenFamily,
		TokenType:   TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ksuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := t.sign(t.refreshSecret, Claims{
		SessionID:   sessionID,
		TokenFamily: tokenFamily,
		// The jti keeps tokens unique even when two rotations of the same
		// session land inside one second.
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ksuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.refreshTTL)),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(t.accessTTL.Seconds()),
	}, nil
}

func (t *TokenIssuer) sign(secret []byte, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken fails closed: bad signature, wrong type, or expiry all
// return an error.
func (t *TokenIssuer) VerifyAccessToken(tokenStr string) (*Claims, error) {
	return t.verify(tokenStr, t.accessSecret, TokenTypeAccess)
}

func (t *TokenIssuer) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	return t.verify(tokenStr, t.refreshSecret, TokenTypeRefresh)
}

func (t *TokenIssuer) verify(tokenStr string, secret []byte, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("wrong token type %q", claims.TokenType)
	}
	return claims, nil
}

// HashRefreshToken is the one-way digest persisted in place of the raw
// refresh token.
func HashRefreshToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
