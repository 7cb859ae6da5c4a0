package gate

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/loganlanou/authgate/internal/identity"
)

// PrincipalKey is the Echo context key under which an admitted request
// carries its principal.
const PrincipalKey = "gate_principal"

type Config struct {
	// SignInPath is where Unauthenticated visitors are sent.
	SignInPath string
	// Wait bounds how long a request waits for the first notification
	// before the loading page is shown. Zero decides on whatever the source
	// has already reported.
	Wait time.Duration
	// SourceFrom returns the visitor's session source, or nil if the
	// request has none.
	SourceFrom func(c echo.Context) Source
	// Loading renders the neutral page shown while Pending.
	Loading echo.HandlerFunc
	// BeforeRedirect runs just before an Unauthenticated redirect.
	BeforeRedirect func(c echo.Context)
	// OnDecision observes every decision the middleware takes.
	OnDecision func(State)
}

// Require guards the routes it wraps. Pending renders the loading page and
// navigates nowhere, Unauthenticated redirects to SignInPath, and
// Authenticated runs the handler with the principal stored under
// PrincipalKey.
func Require(cfg Config) echo.MiddlewareFunc {
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/signin"
	}
	if cfg.Loading == nil {
		cfg.Loading = func(c echo.Context) error {
			return c.String(http.StatusOK, "Loading...")
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			src := cfg.SourceFrom(c)
			if src == nil {
				// nothing will ever notify; same as a subscription that never fires
				return decide(cfg, c, Pending, nil, next)
			}

			g := New(src)
			defer g.Close()

			state := g.State()
			if cfg.Wait > 0 {
				ctx, cancel := context.WithTimeout(c.Request().Context(), cfg.Wait)
				defer cancel()
				state = g.Await(ctx)
			}
			return decide(cfg, c, state, g.Principal(), next)
		}
	}
}

func decide(cfg Config, c echo.Context, state State, p *identity.Principal, next echo.HandlerFunc) error {
	if cfg.OnDecision != nil {
		cfg.OnDecision(state)
	}

	switch state {
	case Authenticated:
		c.Set(PrincipalKey, p)
		return next(c)
	case Unauthenticated:
		slog.Debug("gate redirecting to sign-in", "path", c.Request().URL.Path)
		if cfg.BeforeRedirect != nil {
			cfg.BeforeRedirect(c)
		}
		return c.Redirect(http.StatusFound, cfg.SignInPath)
	default:
		c.Response().Header().Set("Cache-Control", "no-store")
		return cfg.Loading(c)
	}
}

// PrincipalFrom returns the principal admitted by Require.
func PrincipalFrom(c echo.Context) (*identity.Principal, bool) {
	p, ok := c.Get(PrincipalKey).(*identity.Principal)
	return p, ok && p != nil
}
