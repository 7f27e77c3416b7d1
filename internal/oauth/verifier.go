package oauth

import (
	"context"
	"errors"

	"taskhive/api/internal/models"
)

var (
	// ErrTokenInvalid covers every provider-side rejection: bad signature,
	// wrong audience, expiry, or a non-2xx introspection response.
	ErrTokenInvalid = errors.New("provider token invalid or expired")
)

// VerifiedProfile is the server-trusted identity a provider attests to.
// Every field originates from the provider's authoritative response;
// caller-supplied profile data is never used for identity decisions.
type VerifiedProfile struct {
	ID            string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Verifier turns an externally issued token into a trusted profile.
// Trusted providers are those whose verification mechanism itself
// cryptographically attests control of the email address.
type Verifier interface {
	Provider() models.Provider
	Trusted() bool
	Verify(ctx context.Context, token string) (VerifiedProfile, error)
}

// Registry selects a verifier by provider name.
type Registry struct {
	verifiers map[models.Provider]Verifier
}

func NewRegistry(verifiers ...Verifier) *Registry {
	m := make(map[models.Provider]Verifier, len(verifiers))
	for _, v := range verifiers {
		m[v.Provider()] = v
	}
	return &Registry{verifiers: m}
}

func (r *Registry) Lookup(provider models.Provider) (Verifier, bool) {
	v, ok := r.verifiers[provider]
	return v, ok
}

func (r *Registry) Providers() []models.Provider {
	providers := make([]models.Provider, 0, len(r.verifiers))
	for p := range r.verifiers {
		providers = append(providers, p)
	}
	return providers
}
