package echo

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RegisterOpsRoutes mounts /metrics for gatherer and /healthz over checks.
func RegisterOpsRoutes(e *echo.Echo, gatherer prometheus.Gatherer, checks map[string]HealthCheck) {
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c echo.Context) error {
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(c.Request().Context()); err != nil {
				log.Warn().Err(err).Str("check", name).Msg("Health check failed")
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			return c.JSON(http.StatusServiceUnavailable, status)
		}
		return c.JSON(http.StatusOK, status)
	})
}
