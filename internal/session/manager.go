package session

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
)

const (
	sessionName     = "authgate_session"
	visitorKey      = "visitor"
	refreshTokenKey = "refresh_token"
)

// Manager reads and writes the visitor session cookie.
type Manager struct {
	store sessions.Store
}

// NewManager creates a cookie backed session manager. Secure marks the
// cookie HTTPS only.
func NewManager(secret string, secure bool) *Manager {
	store := sessions.NewCookieStore([]byte(secret))

	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		store: store,
	}
}

func (m *Manager) get(c echo.Context) *sessions.Session {
	// A cookie signed with a rotated secret fails to decode; Get still
	// returns a fresh session in that case.
	s, _ := m.store.Get(c.Request(), sessionName)
	return s
}

// Load returns the session data for the request. A visitor without a
// cookie is assigned a new visitor key; New reports that case so the
// caller can persist it.
func (m *Manager) Load(c echo.Context) *Data {
	s := m.get(c)

	data := &Data{}
	data.VisitorKey, _ = s.Values[visitorKey].(string)
	data.RefreshToken, _ = s.Values[refreshTokenKey].(string)

	if data.VisitorKey == "" {
		data.VisitorKey = uuid.NewString()
		data.New = true
	}

	return data
}

// Save writes the visitor key and refresh token to the cookie.
func (m *Manager) Save(c echo.Context, data *Data) error {
	s := m.get(c)

	s.Values[visitorKey] = data.VisitorKey
	if data.RefreshToken == "" {
		delete(s.Values, refreshTokenKey)
	} else {
		s.Values[refreshTokenKey] = data.RefreshToken
	}

	if err := s.Save(c.Request(), c.Response()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Clear drops the refresh token while keeping the visitor key, so flashes
// queued afterwards still reach the visitor.
func (m *Manager) Clear(c echo.Context) error {
	s := m.get(c)
	delete(s.Values, refreshTokenKey)

	if err := s.Save(c.Request(), c.Response()); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// AddFlash queues a one-shot message for the next rendered page.
func (m *Manager) AddFlash(c echo.Context, kind FlashKind, message string) error {
	s := m.get(c)
	s.AddFlash(message, string(kind))

	if err := s.Save(c.Request(), c.Response()); err != nil {
		return fmt.Errorf("failed to save flash: %w", err)
	}
	return nil
}

// Flashes returns and consumes the queued messages. The cookie is only
// rewritten when there was something to consume.
func (m *Manager) Flashes(c echo.Context) []Flash {
	s := m.get(c)

	var out []Flash
	for _, kind := range []FlashKind{FlashError, FlashSuccess} {
		for _, v := range s.Flashes(string(kind)) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Kind: kind, Message: msg})
			}
		}
	}

	if len(out) > 0 {
		_ = s.Save(c.Request(), c.Response())
	}
	return out
}
