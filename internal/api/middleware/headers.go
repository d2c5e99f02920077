package middleware

import (
	"github.com/labstack/echo/v4"
)

// RequireHeaders rejects requests missing any of the named headers with
// the given error, before the body is read.
func RequireHeaders(missing error, names ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, name := range names {
				if c.Request().Header.Get(name) == "" {
					return missing
				}
			}
			return next(c)
		}
	}
}
