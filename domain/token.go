package domain

import "time"

// RefreshTokenType is the discriminator carried only by refresh tokens.
const RefreshTokenType = "refresh"

// SessionClaims is the verified content of a session token.
type SessionClaims struct {
	TokenID            string      `json:"jti"`
	AccountID          string      `json:"id"`
	Email              string      `json:"email,omitempty"`
	Kind               AccountKind `json:"kind"`
	ExternalIdentityID string      `json:"ext,omitempty"`
	Type               string      `json:"type,omitempty"`
	IssuedAt           time.Time   `json:"iat"`
	ExpiresAt          time.Time   `json:"exp"`
}

func (c *SessionClaims) IsRefresh() bool { return c.Type == RefreshTokenType }

// TokenPair is what a successful sign-in hands back to the caller.
type TokenPair struct {
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
