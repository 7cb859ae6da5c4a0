package handlers

import (
	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	appmw "github.com/loganlanou/authgate/internal/middleware"
	"github.com/loganlanou/authgate/internal/session"
	"github.com/loganlanou/authgate/views/layout"
)

// Render renders a templ component and writes it to the response
func Render(c echo.Context, status int, component templ.Component) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(status)
	return component.Render(c.Request().Context(), c.Response().Writer)
}

// Pages builds the per-request page chrome.
type Pages struct {
	Sessions *session.Manager
	SiteURL  string
}

// Page returns the layout data for the current request, consuming any
// queued flashes.
func (p *Pages) Page(c echo.Context, title string) layout.Page {
	page := layout.Page{
		Meta:      layout.NewPageMeta(c, p.SiteURL).WithTitle(title),
		Principal: appmw.GetPrincipal(c),
		CSRF:      csrfToken(c),
	}

	if p.Sessions != nil {
		page.Flashes = p.Sessions.Flashes(c)
	}
	return page
}

func csrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
