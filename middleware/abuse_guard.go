package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/talent-auth/domain"
	apierrors "github.com/pilab-dev/talent-auth/errors"
	"github.com/pilab-dev/talent-auth/internal/metrics"
	"github.com/pilab-dev/talent-auth/internal/ratelimit"
	"github.com/rs/zerolog/log"
)

// AbuseGuard throttles authentication endpoints per caller address. Every
// attempt reserves a slot before the handler runs; the slot is handed back
// unless the response is a 4xx, so only client failures count. If the limiter
// backend is down requests are let through and the outage is logged.
//
// The caller address comes from c.RealIP, so the server must set
// echo.IPExtractor (see NewIPExtractor).
func AbuseGuard(limiter ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := c.RealIP()

			reserved := true
			if count, err := limiter.Hit(ctx, key); err != nil {
				if errors.Is(err, domain.ErrRateLimited) {
					metrics.RateLimitedTotal.Inc()
					log.Warn().Str("ip", key).Str("path", c.Path()).Int64("attempts", count).
						Msg("Authentication attempt throttled")
					status, body := apierrors.FromDomain(err)
					return c.JSON(status, body)
				}
				log.Error().Err(err).Msg("Abuse guard unavailable, allowing request")
				reserved = false
			}

			err := next(c)

			if reserved && !isFailure(c, err) {
				if refundErr := limiter.Refund(ctx, key); refundErr != nil {
					log.Error().Err(refundErr).Str("ip", key).Msg("Failed to refund authentication attempt")
				}
			}
			return err
		}
	}
}

func isFailure(c echo.Context, err error) bool {
	status := c.Response().Status
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		} else {
			return false
		}
	}
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}
