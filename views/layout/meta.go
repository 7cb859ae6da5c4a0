package layout

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	siteName           = "AuthGate"
	defaultDescription = "Sign in to manage your account."
)

// PageMeta contains the metadata rendered into the document head.
type PageMeta struct {
	Title        string
	Description  string
	CanonicalURL string

	// RefreshSeconds, when positive, reloads the page after that many
	// seconds.
	RefreshSeconds int
}

// NewPageMeta returns defaults for the current request.
func NewPageMeta(c echo.Context, siteURL string) PageMeta {
	return PageMeta{
		Title:        siteName,
		Description:  defaultDescription,
		CanonicalURL: BuildAbsoluteURL(siteURL, c.Request().URL.Path),
	}
}

// WithTitle prefixes the site name with a page title.
func (pm PageMeta) WithTitle(title string) PageMeta {
	if title != "" {
		pm.Title = title + " - " + siteName
	}
	return pm
}

// BuildAbsoluteURL joins siteURL and path, leaving absolute URLs alone.
func BuildAbsoluteURL(siteURL, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	siteURL = strings.TrimSuffix(siteURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return siteURL + path
}
