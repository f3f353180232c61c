package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/talent-auth/domain"
	apierrors "github.com/pilab-dev/talent-auth/errors"
	"github.com/rs/zerolog/log"
)

// AccessTokenVerifier is the part of services.TokenService the authenticator needs.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*domain.SessionClaims, error)
}

// RequireBearer rejects requests without a valid access token and stores the
// verified claims in the request context.
func RequireBearer(verifier AccessTokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(http.StatusUnauthorized, apierrors.New(apierrors.InvalidToken, "missing bearer token"))
			}

			claims, err := verifier.VerifyAccessToken(token)
			if err != nil {
				log.Debug().Err(err).Msg("Bearer token rejected")
				status, body := apierrors.FromDomain(err)
				return c.JSON(status, body)
			}

			req := c.Request()
			c.SetRequest(req.WithContext(domain.ContextWithClaims(req.Context(), claims)))
			return next(c)
		}
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" value.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
