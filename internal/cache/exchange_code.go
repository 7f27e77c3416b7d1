package cache

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrExchangeCodeInvalid = errors.New("exchange code invalid or already redeemed")

// ExchangeCodePayload carries freshly issued credentials from a redirect
// flow to the client without placing tokens in a URL.
type ExchangeCodePayload struct {
	UserID       string `json:"userId"`
	SessionID    string `json:"sessionId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// ExchangeCodeStore hands out single-use, short-lived codes redeemable
// exactly once.
type ExchangeCodeStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewExchangeCodeStore(client *redis.Client, ttl time.Duration) *ExchangeCodeStore {
	return &ExchangeCodeStore{client: client, ttl: ttl}
}

func exchangeKey(code string) string {
	return "oauth:exchange:" + code
}

func (s *ExchangeCodeStore) Create(ctx context.Context, payload ExchangeCodePayload) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate exchange code: %w", err)
	}
	code := base64.RawURLEncoding.EncodeToString(buf)

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, exchangeKey(code), raw, s.ttl).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// Redeem deletes the code atomically with the read; a second redemption
// fails.
func (s *ExchangeCodeStore) Redeem(ctx context.Context, code string) (ExchangeCodePayload, error) {
	raw, err := s.client.GetDel(ctx, exchangeKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ExchangeCodePayload{}, ErrExchangeCodeInvalid
		}
		return ExchangeCodePayload{}, err
	}

	var payload ExchangeCodePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ExchangeCodePayload{}, ErrExchangeCodeInvalid
	}
	return payload, nil
}
