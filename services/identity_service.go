package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/pilab-dev/talent-auth/domain"
	"github.com/pilab-dev/talent-auth/internal/audit"
	"github.com/pilab-dev/talent-auth/internal/auth"
	"github.com/pilab-dev/talent-auth/internal/federation"
	"github.com/pilab-dev/talent-auth/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	flowFederated = "federated"
	flowLocal     = "local"

	outcomeSuccess = "success"
)

// AuthResult is the outcome of a successful sign-in or registration.
type AuthResult struct {
	Account   *domain.Account
	Tokens    *domain.TokenPair
	IsNewUser bool
}

// PasswordPolicy bounds the length of local passwords in bytes.
type PasswordPolicy struct {
	MinLength int
}

func (p PasswordPolicy) check(password string) error {
	if len(password) < p.MinLength || len(password) > auth.MaxPasswordBytes {
		return domain.ErrWeakPassword
	}
	return nil
}

// IdentityService resolves federated and local credentials to accounts,
// links identities and widens auth modes.
type IdentityService struct {
	router   *AccountRouter
	verifier federation.IdentityVerifier
	hasher   PasswordHasher
	tokens   *TokenService
	policy   PasswordPolicy
	now      func() time.Time
}

// NewIdentityService wires the engine. verifier may be nil when federated
// sign-in is not configured; federated calls then fail with ErrInvalidAssertion.
func NewIdentityService(
	router *AccountRouter,
	verifier federation.IdentityVerifier,
	hasher PasswordHasher,
	tokens *TokenService,
	policy PasswordPolicy,
) *IdentityService {
	return &IdentityService{
		router:   router,
		verifier: verifier,
		hasher:   hasher,
		tokens:   tokens,
		policy:   policy,
		now:      time.Now,
	}
}

// SignInFederated verifies a provider assertion and resolves it in the
// partition named by kind.
func (s *IdentityService) SignInFederated(ctx context.Context, kind, assertion string) (*AuthResult, error) {
	k, err := domain.ParseAccountKind(kind)
	if err != nil {
		return nil, err
	}
	identity, err := s.verify(ctx, assertion)
	if err != nil {
		s.recordSignIn(flowFederated, string(k), "", err)
		return nil, err
	}
	return s.ResolveFederated(ctx, kind, identity)
}

// ResolveFederated finds the account for a verified identity, first by
// external id and then by email. A found account is linked and widened when
// needed. When nothing is found a *domain.RegistrationRequiredError is
// returned and nothing is created.
func (s *IdentityService) ResolveFederated(ctx context.Context, kind string, identity *domain.ExternalIdentity) (*AuthResult, error) {
	repo, err := s.router.Partition(kind)
	if err != nil {
		return nil, err
	}
	if identity == nil || identity.ExternalID == "" || identity.Email == "" {
		return nil, domain.ErrInvalidAssertion
	}

	account, err := s.lookupFederated(ctx, repo, identity)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			s.recordSignIn(flowFederated, string(repo.Kind()), identity.Email, err)
			return nil, &domain.RegistrationRequiredError{
				Email:       identity.Email,
				DisplayName: identity.DisplayName,
				Kind:        repo.Kind(),
			}
		}
		s.recordSignIn(flowFederated, string(repo.Kind()), identity.Email, err)
		return nil, err
	}

	if account.HasExternalIdentity() && account.ExternalIdentityID != identity.ExternalID {
		log.Warn().Str("accountID", account.ID).Str("kind", string(repo.Kind())).
			Msg("Federated sign-in: account linked to a different external identity")
		s.recordSignIn(flowFederated, string(repo.Kind()), account.ID, domain.ErrIdentityConflict)
		return nil, domain.ErrIdentityConflict
	}

	// Linking by email hands the account to whoever controls the provider
	// identity, so the provider must vouch for the address.
	if !account.HasExternalIdentity() && !identity.EmailVerified {
		log.Warn().Str("accountID", account.ID).Str("kind", string(repo.Kind())).
			Msg("Federated sign-in: refusing to link an unverified email")
		s.recordSignIn(flowFederated, string(repo.Kind()), account.ID, domain.ErrInvalidAssertion)
		return nil, domain.ErrInvalidAssertion
	}

	from := account.AuthMode
	if !account.HasExternalIdentity() {
		account.ExternalIdentityID = identity.ExternalID
	}
	account.EmailVerified = account.EmailVerified || identity.EmailVerified
	if account.DisplayName == "" {
		account.DisplayName = identity.DisplayName
	}
	if account.PictureURL == "" {
		account.PictureURL = identity.PictureURL
	}
	account.AuthMode = account.DeriveAuthMode()
	account.MarkLogin(s.now())

	if err := repo.Update(ctx, account); err != nil {
		log.Error().Err(err).Str("accountID", account.ID).Msg("Federated sign-in: failed to persist account")
		s.recordSignIn(flowFederated, string(repo.Kind()), account.ID, err)
		return nil, err
	}
	s.recordTransition(from, account.AuthMode)

	return s.complete(flowFederated, account, false)
}

func (s *IdentityService) lookupFederated(ctx context.Context, repo domain.AccountRepository, identity *domain.ExternalIdentity) (*domain.Account, error) {
	account, err := repo.FindByExternalID(ctx, identity.ExternalID)
	if err == nil || !errors.Is(err, domain.ErrAccountNotFound) {
		return account, err
	}
	return repo.FindByEmail(ctx, identity.Email)
}

// RegisterFederated verifies an assertion and creates a federated account.
// If another request created the record first, the identity is resolved
// against it instead.
func (s *IdentityService) RegisterFederated(ctx context.Context, kind, assertion string) (*AuthResult, error) {
	if _, err := domain.ParseAccountKind(kind); err != nil {
		return nil, err
	}
	identity, err := s.verify(ctx, assertion)
	if err != nil {
		return nil, err
	}
	return s.RegisterIdentity(ctx, kind, identity)
}

// RegisterIdentity creates an account for an already verified identity.
func (s *IdentityService) RegisterIdentity(ctx context.Context, kind string, identity *domain.ExternalIdentity) (*AuthResult, error) {
	repo, err := s.router.Partition(kind)
	if err != nil {
		return nil, err
	}
	if identity == nil || identity.ExternalID == "" || identity.Email == "" {
		return nil, domain.ErrInvalidAssertion
	}

	account := &domain.Account{
		Email:              identity.Email,
		DisplayName:        identity.DisplayName,
		PictureURL:         identity.PictureURL,
		ExternalIdentityID: identity.ExternalID,
		AuthMode:           domain.AuthModeFederated,
		EmailVerified:      identity.EmailVerified,
	}
	account.MarkLogin(s.now())

	if err := repo.Create(ctx, account); err != nil {
		if !errors.Is(err, domain.ErrAccountExists) {
			audit.Log("RegisterFederated", string(repo.Kind()), identity.Email, "", false, err)
			return nil, err
		}
		log.Debug().Str("email", identity.Email).Msg("RegisterFederated: record exists, resolving instead")
		result, err := s.ResolveFederated(ctx, kind, identity)
		if errors.Is(err, domain.ErrAccountNotFound) {
			// The colliding record vanished between create and lookup.
			return nil, domain.ErrAccountExists
		}
		return result, err
	}

	audit.Log("RegisterFederated", string(repo.Kind()), account.ID, "", true, nil)
	metrics.RegistrationTotal.WithLabelValues(flowFederated, string(repo.Kind())).Inc()
	return s.complete(flowFederated, account, true)
}

// ResolveLocal authenticates an email and password in the kind's partition.
func (s *IdentityService) ResolveLocal(ctx context.Context, kind, email, password string) (*AuthResult, error) {
	repo, err := s.router.Partition(kind)
	if err != nil {
		return nil, err
	}
	k := string(repo.Kind())

	account, err := repo.FindByEmail(ctx, email)
	if err != nil {
		s.recordSignIn(flowLocal, k, email, err)
		return nil, err
	}
	if !account.HasPassword() {
		s.recordSignIn(flowLocal, k, account.ID, domain.ErrPasswordLoginUnavailable)
		return nil, domain.ErrPasswordLoginUnavailable
	}
	if !s.hasher.Verify(account.PasswordHash, password) {
		s.recordSignIn(flowLocal, k, account.ID, domain.ErrInvalidCredentials)
		return nil, domain.ErrInvalidCredentials
	}

	account.MarkLogin(s.now())
	if err := repo.Update(ctx, account); err != nil {
		log.Error().Err(err).Str("accountID", account.ID).Msg("Local sign-in: failed to record login")
		s.recordSignIn(flowLocal, k, account.ID, err)
		return nil, err
	}
	return s.complete(flowLocal, account, false)
}

// SetPassword attaches a first password to an account, typically one that
// was created through federated sign-in.
func (s *IdentityService) SetPassword(ctx context.Context, kind, email, password string) (*domain.Account, error) {
	repo, err := s.router.Partition(kind)
	if err != nil {
		return nil, err
	}
	k := string(repo.Kind())

	account, err := repo.FindByEmail(ctx, email)
	if err != nil {
		audit.Log("SetPassword", k, email, "", false, err)
		return nil, err
	}
	if account.HasPassword() {
		audit.Log("SetPassword", k, account.ID, "", false, domain.ErrPasswordAlreadySet)
		return nil, domain.ErrPasswordAlreadySet
	}
	if err := s.policy.check(password); err != nil {
		audit.Log("SetPassword", k, account.ID, "", false, err)
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error().Err(err).Str("accountID", account.ID).Msg("SetPassword: failed to hash password")
		audit.Log("SetPassword", k, account.ID, "", false, err)
		return nil, err
	}

	from := account.AuthMode
	account.PasswordHash = hash
	account.AuthMode = account.DeriveAuthMode()
	if err := repo.Update(ctx, account); err != nil {
		audit.Log("SetPassword", k, account.ID, "", false, err)
		return nil, err
	}
	s.recordTransition(from, account.AuthMode)
	audit.Log("SetPassword", k, account.ID, string(account.AuthMode), true, nil)
	return account, nil
}

// RegisterLocal creates an account that signs in with a password.
func (s *IdentityService) RegisterLocal(ctx context.Context, kind, email, password, displayName string) (*AuthResult, error) {
	repo, err := s.router.Partition(kind)
	if err != nil {
		return nil, err
	}
	k := string(repo.Kind())

	email = domain.NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	if err := s.policy.check(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		log.Error().Err(err).Msg("RegisterLocal: failed to hash password")
		return nil, err
	}

	account := &domain.Account{
		Email:         email,
		DisplayName:   strings.TrimSpace(displayName),
		PasswordHash:  hash,
		AuthMode:      domain.AuthModeLocal,
		EmailVerified: true,
	}
	account.MarkLogin(s.now())
	if err := repo.Create(ctx, account); err != nil {
		audit.Log("RegisterLocal", k, email, "", false, err)
		return nil, err
	}

	audit.Log("RegisterLocal", k, account.ID, "", true, nil)
	metrics.RegistrationTotal.WithLabelValues(flowLocal, k).Inc()
	return s.complete(flowLocal, account, true)
}

// Refresh exchanges a refresh token for a new access token. The account is
// reloaded so tokens for removed accounts stop working.
func (s *IdentityService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	repo, err := s.router.Repository(claims.Kind)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	account, err := repo.FindByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}

	access, expiresAt, err := s.tokens.issue(account, "", s.tokens.config.AccessTTL)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{AccessToken: access, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// Me loads the account a verified access token belongs to.
func (s *IdentityService) Me(ctx context.Context, claims *domain.SessionClaims) (*domain.Account, error) {
	if claims == nil || claims.IsRefresh() {
		return nil, domain.ErrInvalidToken
	}
	repo, err := s.router.Repository(claims.Kind)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	return repo.FindByID(ctx, claims.AccountID)
}

func (s *IdentityService) verify(ctx context.Context, assertion string) (*domain.ExternalIdentity, error) {
	if s.verifier == nil {
		log.Warn().Msg("Federated sign-in requested but no identity verifier is configured")
		return nil, domain.ErrInvalidAssertion
	}
	return s.verifier.Verify(ctx, assertion)
}

func (s *IdentityService) complete(flow string, account *domain.Account, isNew bool) (*AuthResult, error) {
	tokens, err := s.tokens.IssueTokenPair(account)
	if err != nil {
		log.Error().Err(err).Str("accountID", account.ID).Msg("Failed to issue session tokens")
		return nil, err
	}
	s.recordSignIn(flow, string(account.Kind), account.ID, nil)
	return &AuthResult{Account: account, Tokens: tokens, IsNewUser: isNew}, nil
}

func (s *IdentityService) recordSignIn(flow, kind, subject string, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFor(err)
	}
	metrics.SignInTotal.WithLabelValues(flow, kind, outcome).Inc()
	audit.Log("SignIn", kind, subject, flow, err == nil, err)
}

func (s *IdentityService) recordTransition(from, to domain.AuthMode) {
	if from == to {
		return
	}
	log.Info().Str("from", string(from)).Str("to", string(to)).Msg("Account auth mode widened")
	metrics.AuthModeTransitionTotal.WithLabelValues(string(from), string(to)).Inc()
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrPasswordLoginUnavailable):
		return "password_unavailable"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrInvalidAssertion):
		return "invalid_assertion"
	case errors.Is(err, domain.ErrIdentityConflict):
		return "identity_conflict"
	default:
		return "error"
	}
}
