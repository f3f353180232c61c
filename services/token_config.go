package services

import (
	"fmt"
	"os"
	"strings"

	"github.com/pilab-dev/talent-auth/config"
)

// NewTokenServiceFromConfig builds a TokenService from the token section of
// the server configuration, reading Ed25519 keys from disk when configured.
func NewTokenServiceFromConfig(tc config.TokenConfig) (*TokenService, error) {
	out := TokenConfig{
		SigningMethod: SigningMethod(strings.ToLower(tc.SigningMethod)),
		Issuer:        tc.Issuer,
		Audience:      tc.Audience,
		AccessTTL:     tc.AccessTTL,
		RefreshTTL:    tc.RefreshTTL,
		Leeway:        tc.Leeway,
	}
	if out.SigningMethod == MethodEd25519 {
		priv, err := os.ReadFile(tc.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		pub, err := os.ReadFile(tc.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		out.PrivateKey, out.PublicKey = priv, pub
	} else {
		out.PrivateKey = []byte(tc.Secret)
	}
	return NewTokenService(out)
}
