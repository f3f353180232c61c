//nolint:varnamelen
package echo

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/talent-auth/domain"
	apierrors "github.com/pilab-dev/talent-auth/errors"
	"github.com/pilab-dev/talent-auth/internal/federation"
	"github.com/pilab-dev/talent-auth/internal/ratelimit"
	"github.com/pilab-dev/talent-auth/middleware"
	"github.com/pilab-dev/talent-auth/services"
	"github.com/rs/zerolog/log"
)

// AuthAPI exposes the identity service over HTTP.
type AuthAPI struct {
	identity *services.IdentityService
	tokens   middleware.AccessTokenVerifier
	limiter  ratelimit.Limiter
}

// NewAuthAPI initializes the authentication API.
func NewAuthAPI(identity *services.IdentityService, tokens middleware.AccessTokenVerifier, limiter ratelimit.Limiter) *AuthAPI {
	return &AuthAPI{identity: identity, tokens: tokens, limiter: limiter}
}

// RegisterRoutes registers the /auth routes. Every credential-checking route
// sits behind the abuse guard.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	guard := middleware.AbuseGuard(a.limiter)
	bearer := middleware.RequireBearer(a.tokens)

	g := e.Group("/auth")
	g.POST("/:kind/federated", a.FederatedSignInHandler, guard)
	g.POST("/:kind/federated/register", a.FederatedRegisterHandler, guard)
	g.POST("/:kind/login", a.LoginHandler, guard)
	g.POST("/:kind/register", a.RegisterHandler, guard)
	g.POST("/:kind/password", a.SetPasswordHandler, guard, bearer)
	g.POST("/refresh", a.RefreshHandler, guard)
	g.GET("/me", a.MeHandler, bearer)
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	TokenType    string          `json:"tokenType"`
	ExpiresAt    time.Time       `json:"expiresAt"`
	Account      *domain.Account `json:"account"`
	IsNewUser    bool            `json:"isNewUser"`
}

type registrationRequiredResponse struct {
	IsNewUser   bool               `json:"isNewUser"`
	Email       string             `json:"email"`
	DisplayName string             `json:"displayName,omitempty"`
	AccountKind domain.AccountKind `json:"accountKind"`
}

func newAuthResponse(r *services.AuthResult) *authResponse {
	return &authResponse{
		Token:        r.Tokens.AccessToken,
		RefreshToken: r.Tokens.RefreshToken,
		TokenType:    r.Tokens.TokenType,
		ExpiresAt:    r.Tokens.ExpiresAt,
		Account:      r.Account,
		IsNewUser:    r.IsNewUser,
	}
}

func respondError(c echo.Context, err error) error {
	status, body := apierrors.FromDomain(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}
	return c.JSON(status, body)
}

// kindParam validates :kind before anything else runs.
func kindParam(c echo.Context) (string, error) {
	kind := c.Param("kind")
	if _, err := domain.ParseAccountKind(kind); err != nil {
		return "", err
	}
	return kind, nil
}

func bindAssertion(c echo.Context) (string, error) {
	var req federation.AssertionRequest
	if err := c.Bind(&req); err != nil {
		return "", err
	}
	return req.Assertion()
}

// FederatedSignInHandler resolves a provider assertion to an account, or
// tells the client that registration is needed.
func (a *AuthAPI) FederatedSignInHandler(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return respondError(c, err)
	}
	assertion, err := bindAssertion(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("an identity assertion is required"))
	}

	result, err := a.identity.SignInFederated(c.Request().Context(), kind, assertion)
	if err != nil {
		var regErr *domain.RegistrationRequiredError
		if errors.As(err, &regErr) {
			return c.JSON(http.StatusOK, &registrationRequiredResponse{
				IsNewUser:   true,
				Email:       regErr.Email,
				DisplayName: regErr.DisplayName,
				AccountKind: regErr.Kind,
			})
		}
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newAuthResponse(result))
}

// FederatedRegisterHandler creates a federated account.
func (a *AuthAPI) FederatedRegisterHandler(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return respondError(c, err)
	}
	assertion, err := bindAssertion(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("an identity assertion is required"))
	}

	result, err := a.identity.RegisterFederated(c.Request().Context(), kind, assertion)
	if err != nil {
		return respondError(c, err)
	}
	status := http.StatusOK
	if result.IsNewUser {
		status = http.StatusCreated
	}
	return c.JSON(status, newAuthResponse(result))
}

// LoginHandler signs in with email and password.
func (a *AuthAPI) LoginHandler(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return respondError(c, err)
	}
	var req credentialsRequest
	if err := c.Bind(&req); err != nil || req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("email and password are required"))
	}

	result, err := a.identity.ResolveLocal(c.Request().Context(), kind, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newAuthResponse(result))
}

// RegisterHandler creates a password account.
func (a *AuthAPI) RegisterHandler(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return respondError(c, err)
	}
	var req credentialsRequest
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("email and password are required"))
	}

	result, err := a.identity.RegisterLocal(c.Request().Context(), kind, req.Email, req.Password, req.DisplayName)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, newAuthResponse(result))
}

// SetPasswordHandler adds a first password to the caller's own account.
func (a *AuthAPI) SetPasswordHandler(c echo.Context) error {
	kind, err := kindParam(c)
	if err != nil {
		return respondError(c, err)
	}
	var req credentialsRequest
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("email and password are required"))
	}

	claims, ok := domain.ClaimsFromContext(c.Request().Context())
	parsed, _ := domain.ParseAccountKind(kind)
	if !ok || claims.Kind != parsed || domain.NormalizeEmail(claims.Email) != domain.NormalizeEmail(req.Email) {
		return c.JSON(http.StatusForbidden, apierrors.New(apierrors.Forbidden, "a password can only be set on your own account"))
	}

	account, err := a.identity.SetPassword(c.Request().Context(), kind, req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":  "password set",
		"authMode": account.AuthMode,
	})
}

// RefreshHandler exchanges a refresh token for a new access token.
func (a *AuthAPI) RefreshHandler(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("refreshToken is required"))
	}

	pair, err := a.identity.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, pair)
}

// MeHandler returns the account of the bearer token.
func (a *AuthAPI) MeHandler(c echo.Context) error {
	claims, _ := domain.ClaimsFromContext(c.Request().Context())
	account, err := a.identity.Me(c.Request().Context(), claims)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			err = domain.ErrInvalidToken
		}
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, account)
}
