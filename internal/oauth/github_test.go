package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskhive/api/internal/config"
	"taskhive/api/internal/models"
)

func newGitHubServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *GitHubVerifier) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	verifier := NewGitHubVerifier(config.OAuthProviderConfig{
		UserInfoURL: srv.URL + "/user",
		EmailsURL:   srv.URL + "/user/emails",
		Trusted:     false,
	}, srv.Client())
	return srv, verifier
}

func TestGitHubVerifyValidToken(t *testing.T) {
	_, verifier := newGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gho_token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 583231, "login": "octocat", "name": "The Octocat", "email": "octo@example.com", "avatar_url": "https://example.com/a.png"}`))
	})

	profile, err := verifier.Verify(context.Background(), "gho_token")
	require.NoError(t, err)
	assert.Equal(t, "583231", profile.ID)
	assert.Equal(t, "octo@example.com", profile.Email)
	assert.Equal(t, "The Octocat", profile.Name)
	assert.False(t, profile.EmailVerified)
	assert.Equal(t, models.ProviderGitHub, verifier.Provider())
	assert.False(t, verifier.Trusted())
}

func TestGitHubVerifyNameFallsBackToLogin(t *testing.T) {
	_, verifier := newGitHubServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id": 42, "login": "octocat", "name": ""}`))
	})

	profile, err := verifier.Verify(context.Background(), "gho_token")
	require.NoError(t, err)
	assert.Equal(t, "octocat", profile.Name)
}

func TestGitHubVerifyPrivateEmailFromEmailsEndpoint(t *testing.T) {
	_, verifier := newGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			_, _ = w.Write([]byte(`{"id": 42, "login": "octocat", "email": null}`))
		case "/user/emails":
			assert.Equal(t, "Bearer gho_token", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`[
				{"email": "old@example.com", "primary": false, "verified": true},
				{"email": "octo@example.com", "primary": true, "verified": true}
			]`))
		}
	})

	profile, err := verifier.Verify(context.Background(), "gho_token")
	require.NoError(t, err)
	assert.Equal(t, "octo@example.com", profile.Email)
	assert.True(t, profile.EmailVerified)
}

func TestGitHubVerifyMissingEmailScope(t *testing.T) {
	_, verifier := newGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user":
			_, _ = w.Write([]byte(`{"id": 42, "login": "octocat"}`))
		case "/user/emails":
			w.WriteHeader(http.StatusForbidden)
		}
	})

	// The token is still good; the caller decides what an empty email
	// means.
	profile, err := verifier.Verify(context.Background(), "gho_token")
	require.NoError(t, err)
	assert.Empty(t, profile.Email)
}

func TestGitHubVerifyRejections(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"rate limited", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}},
		{"unparseable body", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>nope</html>"))
		}},
		{"missing id", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"login": "octocat"}`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, verifier := newGitHubServer(t, tc.handler)
			_, err := verifier.Verify(context.Background(), "expired-token")
			require.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestGitHubVerifyUnreachableProvider(t *testing.T) {
	srv, verifier := newGitHubServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv.Close()

	_, err := verifier.Verify(context.Background(), "gho_token")
	require.ErrorIs(t, err, ErrTokenInvalid)
}
