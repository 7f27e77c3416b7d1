package oauth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"taskhive/api/internal/config"
	"taskhive/api/internal/models"
)

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier verifies Google ID tokens (signed assertions) against the
// published key set, checking signature, issuer, audience, and expiry.
type GoogleVerifier struct {
	cfg  config.OAuthProviderConfig
	keys KeySet
}

func NewGoogleVerifier(cfg config.OAuthProviderConfig, keys KeySet) *GoogleVerifier {
	return &GoogleVerifier{cfg: cfg, keys: keys}
}

func (v *GoogleVerifier) Provider() models.Provider { return models.ProviderGoogle }

// Trusted: a valid signature over the email_verified claim attests control
// of the address.
func (v *GoogleVerifier) Trusted() bool { return v.cfg.Trusted }

func (v *GoogleVerifier) Verify(ctx context.Context, token string) (VerifiedProfile, error) {
	parsed, err := jwt.ParseWithClaims(token, &googleClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("missing kid header")
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.ClientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return VerifiedProfile{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*googleClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return VerifiedProfile{}, ErrTokenInvalid
	}

	return VerifiedProfile{
		ID:            claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}
