package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

// Timeout bounds the lifetime of each request's context. Handlers observe the
// deadline through ctx.Done(); slow downstream calls fail instead of hanging.
func Timeout(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
