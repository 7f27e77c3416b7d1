package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jwksDocument(t *testing.T, kids ...string) []byte {
	t.Helper()
	key := newSigningKey(t)
	doc := jwks{}
	for _, kid := range kids {
		doc.Keys = append(doc.Keys, jwk{
			Kty: "RSA",
			Kid: kid,
			N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		})
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func TestRemoteKeySetFetchesAndCaches(t *testing.T) {
	var fetches atomic.Int64
	doc := jwksDocument(t, "kid-a", "kid-b")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)

	keys := NewRemoteKeySet(srv.URL, srv.Client())
	ctx := context.Background()

	first, err := keys.Key(ctx, "kid-a")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := keys.Key(ctx, "kid-b")
	require.NoError(t, err)
	require.NotNil(t, second)

	// Both lookups served from one fetch.
	assert.Equal(t, int64(1), fetches.Load())

	// An unknown kid inside the refetch floor does not hammer the provider.
	_, err = keys.Key(ctx, "kid-unknown")
	require.Error(t, err)
	assert.Equal(t, int64(1), fetches.Load())
}

func TestRemoteKeySetRejectsEmptyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"keys":[{"kty":"EC","kid":"ec-1"}]}`))
	}))
	t.Cleanup(srv.Close)

	keys := NewRemoteKeySet(srv.URL, srv.Client())
	_, err := keys.Key(context.Background(), "ec-1")
	require.Error(t, err)
}

func TestRemoteKeySetUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	keys := NewRemoteKeySet(srv.URL, srv.Client())
	_, err := keys.Key(context.Background(), "kid-a")
	require.Error(t, err)
}

func TestParseRSAKeyRejectsBadInput(t *testing.T) {
	_, err := parseRSAKey(jwk{Kty: "RSA", Kid: "k", N: "!!!", E: "AQAB"})
	require.Error(t, err)

	_, err = parseRSAKey(jwk{Kty: "RSA", Kid: "k", N: "AQAB", E: "AQ"})
	require.Error(t, err)
}
