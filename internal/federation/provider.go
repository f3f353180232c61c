package federation

import (
	"context"
	"crypto"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pilab-dev/talent-auth/domain"
	"github.com/rs/zerolog/log"
)

// IdentityVerifier validates a caller-supplied identity assertion and returns
// the identity facts it carries. Implementations make no account decisions.
type IdentityVerifier interface {
	Verify(ctx context.Context, assertion string) (*domain.ExternalIdentity, error)
}

// IDTokenVerifier verifies OpenID Connect ID tokens issued by one provider for
// one registered client id.
type IDTokenVerifier struct {
	provider string
	verifier *oidc.IDTokenVerifier
}

// NewIDTokenVerifier discovers the provider's keys from issuerURL and binds the
// verifier to clientID. The key set is fetched lazily and refreshed by go-oidc
// when an unknown key id shows up.
func NewIDTokenVerifier(ctx context.Context, name, issuerURL, clientID string) (*IDTokenVerifier, error) {
	if clientID == "" {
		return nil, ErrProviderMisconfigured
	}
	p, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to init %s oidc provider: %w", name, err)
	}
	return &IDTokenVerifier{
		provider: name,
		verifier: p.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// NewStaticIDTokenVerifier builds a verifier over a fixed set of public keys.
// Used for providers without discovery and in tests.
func NewStaticIDTokenVerifier(name, issuerURL, clientID string, keys ...crypto.PublicKey) (*IDTokenVerifier, error) {
	if clientID == "" || len(keys) == 0 {
		return nil, ErrProviderMisconfigured
	}
	keySet := &oidc.StaticKeySet{PublicKeys: keys}
	return &IDTokenVerifier{
		provider: name,
		verifier: oidc.NewVerifier(issuerURL, keySet, &oidc.Config{ClientID: clientID}),
	}, nil
}

type idTokenClaims struct {
	Subject       string    `json:"sub"`
	Email         string    `json:"email"`
	EmailVerified claimBool `json:"email_verified"`
	Name          string    `json:"name"`
	GivenName     string    `json:"given_name"`
	FamilyName    string    `json:"family_name"`
	Picture       string    `json:"picture"`
}

// Verify checks signature, audience and expiry. Every failure collapses into
// domain.ErrInvalidAssertion; the reason is only logged.
func (v *IDTokenVerifier) Verify(ctx context.Context, assertion string) (*domain.ExternalIdentity, error) {
	if strings.TrimSpace(assertion) == "" {
		return nil, domain.ErrInvalidAssertion
	}

	idToken, err := v.verifier.Verify(ctx, assertion)
	if err != nil {
		log.Debug().Err(err).Str("provider", v.provider).Msg("ID token verification failed")
		return nil, domain.ErrInvalidAssertion
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		log.Debug().Err(err).Str("provider", v.provider).Msg("ID token claims parse failed")
		return nil, domain.ErrInvalidAssertion
	}
	if claims.Subject == "" || claims.Email == "" {
		log.Debug().Str("provider", v.provider).Msg("ID token missing sub or email")
		return nil, domain.ErrInvalidAssertion
	}

	displayName := claims.Name
	if displayName == "" {
		displayName = strings.TrimSpace(claims.GivenName + " " + claims.FamilyName)
	}

	return &domain.ExternalIdentity{
		ExternalID:    claims.Subject,
		Email:         domain.NormalizeEmail(claims.Email),
		DisplayName:   displayName,
		PictureURL:    claims.Picture,
		EmailVerified: bool(claims.EmailVerified),
	}, nil
}

// claimBool accepts both JSON booleans and the "true"/"false" strings some
// providers emit for email_verified.
type claimBool bool

func (b *claimBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = claimBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = claimBool(strings.EqualFold(s, "true"))
	return nil
}

var _ IdentityVerifier = (*IDTokenVerifier)(nil)
