package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ClaimsKey is the Echo context key for verified claims.
const ClaimsKey = "bearer_claims"

// BearerAuth rejects requests without a valid "Authorization: Bearer"
// token with 401 and stores the verified claims otherwise.
func BearerAuth(v Verifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractBearerToken(c.Request())
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing bearer token")
			}

			claims, err := v.Verify(c.Request().Context(), token)
			if err != nil {
				slog.Debug("bearer token rejected", "error", err, "path", c.Request().URL.Path)
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(ClaimsKey, claims)

			return next(c)
		}
	}
}

func extractBearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// ClaimsFrom retrieves verified claims from the Echo context.
func ClaimsFrom(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(ClaimsKey).(*Claims)
	return claims, ok && claims != nil
}
