package middleware

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/loganlanou/authgate/internal/gate"
	"github.com/loganlanou/authgate/internal/identity"
	"github.com/loganlanou/authgate/internal/session"
)

// Context keys for storing visitor data
const (
	AuthKey    = "auth"
	SessionKey = "session"
)

// LoadSession attaches the visitor's auth object to the Echo context.
// Visitors without a cookie get a visitor key; a returning visitor whose
// auth object was swept is restored from the refresh token in the cookie.
func LoadSession(sessionMgr *session.Manager, registry *identity.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			data := sessionMgr.Load(c)
			if data.New {
				if err := sessionMgr.Save(c, data); err != nil {
					slog.Warn("failed to save new session", "error", err)
				}
			}

			auth := registry.Attach(data.VisitorKey, data.RefreshToken)
			c.Set(AuthKey, auth)
			c.Set(SessionKey, data)

			return next(c)
		}
	}
}

// AuthFrom returns the visitor's auth object, or nil outside LoadSession.
func AuthFrom(c echo.Context) *identity.Auth {
	auth, _ := c.Get(AuthKey).(*identity.Auth)
	return auth
}

func SessionFrom(c echo.Context) *session.Data {
	data, _ := c.Get(SessionKey).(*session.Data)
	return data
}

// GateSource adapts AuthFrom for gate.Config.SourceFrom.
func GateSource(c echo.Context) gate.Source {
	if auth := AuthFrom(c); auth != nil {
		return auth
	}
	return nil
}

// GetPrincipal returns the principal the gate admitted on guarded routes,
// and the visitor's current one elsewhere. Nil means signed out.
func GetPrincipal(c echo.Context) *identity.Principal {
	if p, ok := gate.PrincipalFrom(c); ok {
		return p
	}
	if auth := AuthFrom(c); auth != nil {
		return auth.CurrentPrincipal()
	}
	return nil
}
