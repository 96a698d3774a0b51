// Package middleware holds the HTTP middlewares: API-key auth and
// per-caller rate limiting.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// APIKeyHeader is the header clients authenticate with.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns an echo middleware validating the X-API-Key header
// against the configured key. The key may be stored as a bcrypt hash
// (recognized by the $2 prefix) or as plaintext, which is compared in
// constant time.
func APIKeyAuth(configuredKey string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			provided := c.Request().Header.Get(APIKeyHeader)
			if provided == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing API key")
			}
			if !verifyAPIKey(configuredKey, provided) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid API key")
			}
			return next(c)
		}
	}
}

func verifyAPIKey(configured, provided string) bool {
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(provided)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(provided)) == 1
}
