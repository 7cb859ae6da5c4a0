package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/loganlanou/authgate/internal/identity"
	"github.com/loganlanou/authgate/internal/identity/identitytest"
	"github.com/loganlanou/authgate/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-test-secret-test-sec"

func TestLoadSession_AttachesAuth(t *testing.T) {
	registry := identity.NewRegistry(identitytest.New(), time.Hour)
	defer registry.Close()
	mgr := session.NewManager(testSecret, false)

	e := echo.New()
	var seen *identity.Auth
	e.GET("/", func(c echo.Context) error {
		seen = AuthFrom(c)
		assert.Nil(t, GetPrincipal(c))
		assert.NotNil(t, GateSource(c))
		assert.NotNil(t, SessionFrom(c))
		return c.NoContent(http.StatusOK)
	}, LoadSession(mgr, registry))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.True(t, seen.Resolved())
	assert.NotEmpty(t, rec.Result().Cookies(), "new visitors get a cookie")
}

func TestLoadSession_CookielessVisitsAreNotKept(t *testing.T) {
	registry := identity.NewRegistry(identitytest.New(), time.Hour)
	defer registry.Close()
	mgr := session.NewManager(testSecret, false)

	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, LoadSession(mgr, registry))

	for range 500 {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 0, registry.Len())
}

func TestLoadSession_SignedInVisitor(t *testing.T) {
	provider := identitytest.New()
	provider.AddAccount("ada@example.com", "secret1", "Ada")
	registry := identity.NewRegistry(provider, time.Hour)
	defer registry.Close()
	mgr := session.NewManager(testSecret, false)

	e := echo.New()
	var signedIn *identity.Auth
	e.POST("/signin", func(c echo.Context) error {
		signedIn = AuthFrom(c)
		_, err := signedIn.SignIn(context.Background(), "ada@example.com", "secret1")
		require.NoError(t, err)
		return c.NoContent(http.StatusOK)
	}, LoadSession(mgr, registry))
	e.GET("/me", func(c echo.Context) error {
		assert.Same(t, signedIn, AuthFrom(c))
		p := GetPrincipal(c)
		require.NotNil(t, p)
		return c.String(http.StatusOK, p.Email)
	}, LoadSession(mgr, registry))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/signin", nil))
	assert.Equal(t, 1, registry.Len())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, ck := range rec.Result().Cookies() {
		req.AddCookie(ck)
	}
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "ada@example.com", rec.Body.String())
}

func TestGateSource_WithoutSession(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Nil(t, GateSource(c))
	assert.Nil(t, AuthFrom(c))
	assert.Nil(t, SessionFrom(c))
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders(), RequestLogger())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
