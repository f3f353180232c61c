package services

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pilab-dev/talent-auth/domain"
	"github.com/pilab-dev/talent-auth/internal/metrics"
)

// SigningMethod selects how session tokens are signed.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// TokenConfig configures a TokenService. PrivateKey holds the HS256 secret or
// an Ed25519 private key (raw or PEM); PublicKey the Ed25519 public key.
type TokenConfig struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
}

// TokenService mints and verifies stateless session tokens.
type TokenService struct {
	config    TokenConfig
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	now       func() time.Time
}

type sessionClaims struct {
	AccountID          string             `json:"id"`
	Email              string             `json:"email,omitempty"`
	Kind               domain.AccountKind `json:"kind"`
	ExternalIdentityID string             `json:"ext,omitempty"`
	Type               string             `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// NewTokenService validates cfg and prepares the signing keys.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}

	s := &TokenService{config: cfg, now: time.Now}
	switch SigningMethod(strings.ToLower(string(cfg.SigningMethod))) {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
		s.method = jwt.SigningMethodHS256
		s.signKey = cfg.PrivateKey
		s.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		pub, err := parseEdPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		s.method = jwt.SigningMethodEdDSA
		s.signKey = priv
		s.verifyKey = pub
	default:
		return nil, errors.New("unsupported signing method")
	}
	return s, nil
}

// IssueAccessToken mints an access token for account.
func (s *TokenService) IssueAccessToken(account *domain.Account) (string, error) {
	token, _, err := s.issue(account, "", s.config.AccessTTL)
	return token, err
}

// IssueRefreshToken mints a refresh token for account. It carries only the
// account id, its kind and the refresh discriminator.
func (s *TokenService) IssueRefreshToken(account *domain.Account) (string, error) {
	token, _, err := s.issue(account, domain.RefreshTokenType, s.config.RefreshTTL)
	return token, err
}

// IssueTokenPair mints both tokens for a successful sign-in.
func (s *TokenService) IssueTokenPair(account *domain.Account) (*domain.TokenPair, error) {
	access, expiresAt, err := s.issue(account, "", s.config.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(account)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *TokenService) issue(account *domain.Account, tokenType string, ttl time.Duration) (string, time.Time, error) {
	if account == nil || account.ID == "" || account.Kind == "" {
		return "", time.Time{}, errors.New("account id and kind are required to issue a token")
	}
	now := s.now()
	expiresAt := now.Add(ttl)

	claims := sessionClaims{
		AccountID: account.ID,
		Kind:      account.Kind,
		Type:      tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   account.ID,
			Issuer:    s.config.Issuer,
			Audience:  jwt.ClaimStrings{s.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if tokenType != domain.RefreshTokenType {
		claims.Email = account.Email
		claims.ExternalIdentityID = account.ExternalIdentityID
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	label := "access"
	if tokenType == domain.RefreshTokenType {
		label = domain.RefreshTokenType
	}
	metrics.TokensIssuedTotal.WithLabelValues(label).Inc()
	return signed, expiresAt, nil
}

// VerifyAccessToken checks signature, issuer, audience and expiry, and rejects
// refresh tokens so they can never stand in for an access token.
func (s *TokenService) VerifyAccessToken(token string) (*domain.SessionClaims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.IsRefresh() {
		return nil, fmt.Errorf("%w: refresh token presented as access token", domain.ErrInvalidToken)
	}
	return claims, nil
}

// VerifyRefreshToken checks signature, issuer, audience and expiry, and
// requires the refresh discriminator.
func (s *TokenService) VerifyRefreshToken(token string) (*domain.SessionClaims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if !claims.IsRefresh() {
		return nil, fmt.Errorf("%w: not a refresh token", domain.ErrInvalidToken)
	}
	return claims, nil
}

func (s *TokenService) parse(tokenStr string) (*domain.SessionClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithAudience(s.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(s.config.Leeway))
	}

	var claims sessionClaims
	token, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return s.verifyKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !token.Valid || claims.AccountID == "" {
		return nil, domain.ErrInvalidToken
	}
	if _, err := domain.ParseAccountKind(string(claims.Kind)); err != nil {
		return nil, fmt.Errorf("%w: unknown account kind", domain.ErrInvalidToken)
	}

	out := &domain.SessionClaims{
		TokenID:            claims.ID,
		AccountID:          claims.AccountID,
		Email:              claims.Email,
		Kind:               claims.Kind,
		ExternalIdentityID: claims.ExternalIdentityID,
		Type:               claims.Type,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
