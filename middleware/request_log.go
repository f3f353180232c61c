package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/talent-auth/log"
)

// RequestLogger writes one structured line per request.
func RequestLogger(logger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			fields := map[string]interface{}{
				"method":     req.Method,
				"path":       c.Path(),
				"status":     c.Response().Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"ip":         c.RealIP(),
			}
			if c.Response().Status >= 500 {
				logger.Error(req.Context(), "request failed", err, fields)
			} else {
				logger.Info(req.Context(), "request", fields)
			}
			return nil
		}
	}
}
