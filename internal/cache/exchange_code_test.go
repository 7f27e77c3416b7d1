package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeCodeSingleRedemption(t *testing.T) {
	_, client := testRedis(t)
	store := NewExchangeCodeStore(client, time.Minute)
	ctx := context.Background()

	payload := ExchangeCodePayload{
		UserID:       "user-1",
		SessionID:    "sess-1",
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresIn:    900,
	}
	code, err := store.Create(ctx, payload)
	require.NoError(t, err)
	require.NotEmpty(t, code)

	got, err := store.Redeem(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = store.Redeem(ctx, code)
	require.ErrorIs(t, err, ErrExchangeCodeInvalid)
}

func TestExchangeCodeExpiry(t *testing.T) {
	mr, client := testRedis(t)
	store := NewExchangeCodeStore(client, time.Minute)
	ctx := context.Background()

	code, err := store.Create(ctx, ExchangeCodePayload{UserID: "user-1"})
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)
	_, err = store.Redeem(ctx, code)
	require.ErrorIs(t, err, ErrExchangeCodeInvalid)
}

func TestExchangeCodeUnknown(t *testing.T) {
	_, client := testRedis(t)
	store := NewExchangeCodeStore(client, time.Minute)

	_, err := store.Redeem(context.Background(), "never-issued")
	require.ErrorIs(t, err, ErrExchangeCodeInvalid)
}

func TestExchangeCodesUnique(t *testing.T) {
	_, client := testRedis(t)
	store := NewExchangeCodeStore(client, time.Minute)
	ctx := context.Background()

	first, err := store.Create(ctx, ExchangeCodePayload{UserID: "u"})
	require.NoError(t, err)
	second, err := store.Create(ctx, ExchangeCodePayload{UserID: "u"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
