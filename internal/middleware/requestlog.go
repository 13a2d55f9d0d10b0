package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/akabemail-hash/asutkosks/internal/logging"
	"github.com/akabemail-hash/asutkosks/internal/metrics"
)

// RequestLogger propagates the X-Request-ID set by echo's RequestID
// middleware into the request context, then writes one access line and
// records HTTP metrics per request.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := c.Response().Header().Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = logging.NewRequestID()
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}
			ctx := logging.ContextWithRequestID(req.Context(), rid)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// let the error handler write the response so the status is final
				c.Error(err)
			}

			status := c.Response().Status
			elapsed := time.Since(start)
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveRequest(req.Method, route, status, elapsed)

			ev := logging.Ctx(ctx).Info()
			if status >= 500 {
				ev = logging.Ctx(ctx).Error().Err(err)
			}
			if id, ok := IdentityFrom(c); ok {
				ev = ev.Uint64("user_id", id.ID)
			}
			ev.Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", route).
				Int("status", status).
				Dur("elapsed", elapsed).
				Str("ip", c.RealIP()).
				Msg("request")
			return nil
		}
	}
}
