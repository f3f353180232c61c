package federation

import (
	"context"
)

// GoogleIssuerURL is the issuer of Google Sign-In ID tokens. Overridable in tests.
var GoogleIssuerURL = "https://accounts.google.com"

// NewGoogleVerifier creates a verifier for Google ID tokens (the "credential"
// returned by Sign in with Google) issued to clientID.
func NewGoogleVerifier(ctx context.Context, clientID string) (*IDTokenVerifier, error) {
	return NewIDTokenVerifier(ctx, "google", GoogleIssuerURL, clientID)
}
