package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

const returnToCookieName = "authgate_return_to"

var disallowedReturnTo = map[string]struct{}{
	"/signin":        {},
	"/signup":        {},
	"/signout":       {},
	"/resetPassword": {},
}

func sanitizeReturnTo(path string) (string, bool) {
	if path == "" {
		return "", false
	}

	if strings.ContainsAny(path, "\r\n\\") {
		return "", false
	}

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "//") {
		return "", false
	}

	if !strings.HasPrefix(path, "/") {
		return "", false
	}

	base := path
	if idx := strings.IndexAny(path, "?#"); idx != -1 {
		base = path[:idx]
	}

	if _, blocked := disallowedReturnTo[base]; blocked {
		return "", false
	}

	if strings.HasPrefix(base, "/api/") {
		return "", false
	}

	return path, true
}

// ReturnTo remembers and recalls where a visitor was headed before being
// sent to sign in.
type ReturnTo struct {
	Secure bool
}

// Remember stores the request's path for five minutes.
func (r ReturnTo) Remember(c echo.Context) {
	r.remember(c, c.Request().URL.RequestURI())
}

func (r ReturnTo) remember(c echo.Context, path string) {
	if sanitized, ok := sanitizeReturnTo(path); ok {
		c.SetCookie(&http.Cookie{
			Name:     returnToCookieName,
			Value:    url.QueryEscape(sanitized),
			Path:     "/",
			HttpOnly: true,
			Secure:   r.Secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   300, // 5 minutes
		})
	}
}

func (r ReturnTo) clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     returnToCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// Pop returns the remembered path, or "" if there is none, and forgets it.
func (r ReturnTo) Pop(c echo.Context) string {
	cookie, err := c.Cookie(returnToCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	r.clear(c)

	decoded, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}

	sanitized, ok := sanitizeReturnTo(decoded)
	if !ok {
		return ""
	}

	return sanitized
}
