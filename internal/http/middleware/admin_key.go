package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminKeyMiddleware authenticates admin requests against a static key.
func AdminKeyMiddleware(key string) echo.MiddlewareFunc {
	want := []byte(key)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := strings.TrimSpace(c.Request().Header.Get(AdminKeyHeader))
			if got == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing admin key"})
			}
			if len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid admin key"})
			}
			return next(c)
		}
	}
}
