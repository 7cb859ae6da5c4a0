package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/loganlanou/authgate/internal/gate"
	"github.com/loganlanou/authgate/internal/identity"
	"github.com/loganlanou/authgate/internal/identity/identitytest"
	appmw "github.com/loganlanou/authgate/internal/middleware"
	"github.com/loganlanou/authgate/internal/session"
	"github.com/loganlanou/authgate/internal/userid"
	"github.com/loganlanou/authgate/storage/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-test-secret-test-sec"

type testApp struct {
	echo     *echo.Echo
	provider *identitytest.Provider
	registry *identity.Registry
	queries  *db.Queries
	backend  *httptest.Server
	// backendStatus is what the fake identity backend answers with.
	backendStatus int
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	app := &testApp{
		provider:      identitytest.New(),
		backendStatus: http.StatusOK,
	}

	_, queries, cleanup := NewTestDB()
	t.Cleanup(cleanup)
	app.queries = queries

	app.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if app.backendStatus != http.StatusOK {
			w.WriteHeader(app.backendStatus)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userid.Identity{ID: "01HXTESTINTERNALID0000000", Principal: token})
	}))
	t.Cleanup(app.backend.Close)

	registry := identity.NewRegistry(app.provider, time.Hour)
	t.Cleanup(registry.Close)
	app.registry = registry
	sessions := session.NewManager(testSecret, false)
	pages := &Pages{Sessions: sessions, SiteURL: "http://localhost:8000"}
	returnTo := ReturnTo{}

	authHandler := NewAuthHandler(AuthHandlerConfig{
		Pages:    pages,
		Sessions: sessions,
		Registry: registry,
		Queries:  queries,
		ReturnTo: returnTo,
	})
	userHandler := NewUserHandler(pages, sessions, queries, userid.NewClient(app.backend.URL+"/api"))

	e := echo.New()
	e.Use(appmw.LoadSession(sessions, registry))

	e.GET("/signin", authHandler.HandleSignInPage)
	e.POST("/signin", authHandler.HandleSignIn)
	e.GET("/signup", authHandler.HandleSignUpPage)
	e.POST("/signup", authHandler.HandleSignUp)
	e.GET("/resetPassword", authHandler.HandleResetPage)
	e.POST("/resetPassword", authHandler.HandleReset)
	e.POST("/signout", authHandler.HandleSignOut)
	e.GET("/user", userHandler.HandleProfile, gate.Require(gate.Config{
		SignInPath:     "/signin",
		Wait:           2 * time.Second,
		SourceFrom:     appmw.GateSource,
		Loading:        userHandler.HandleLoading,
		BeforeRedirect: returnTo.Remember,
	}))

	app.echo = e
	return app
}

func (a *testApp) browser() *Browser {
	return NewBrowser(a.echo)
}

func signInForm(email, password string) url.Values {
	return url.Values{"email": {email}, "password": {password}}
}

func TestSignIn_Success(t *testing.T) {
	app := newTestApp(t)
	app.provider.AddAccount("ada@example.com", "secret1", "Ada")
	b := app.browser()

	rec := b.PostForm("/signin", signInForm("ada@example.com", "secret1"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/user", rec.Header().Get(echo.HeaderLocation))

	rec = b.Get("/user")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ada@example.com")
	assert.Contains(t, body, "01HXTESTINTERNALID0000000")
	assert.Contains(t, body, `action="/signout"`)
}

func TestSignIn_BadCredentials(t *testing.T) {
	app := newTestApp(t)
	app.provider.AddAccount("ada@example.com", "secret1", "Ada")
	b := app.browser()

	rec := b.PostForm("/signin", signInForm("ada@example.com", "wrong-password"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/signin", rec.Header().Get(echo.HeaderLocation))

	rec = b.Get("/signin")
	assert.Contains(t, rec.Body.String(), msgBadCredentials)

	rec = b.Get("/signin")
	assert.NotContains(t, rec.Body.String(), msgBadCredentials, "flash shown once")

	rec = b.Get("/user")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestSignIn_Validation(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"missing email", signInForm("", "secret1"), "cannot be blank"},
		{"malformed email", signInForm("not-an-email", "secret1"), "must be a valid email address"},
		{"missing password", signInForm("ada@example.com", ""), "cannot be blank"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.browser().PostForm("/signin", tt.form)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Equal(t, 0, app.provider.Calls("SignInWithPassword"))
		})
	}
}

func TestSignIn_ReturnsToGuardedPage(t *testing.T) {
	app := newTestApp(t)
	app.provider.AddAccount("ada@example.com", "secret1", "Ada")
	b := app.browser()

	rec := b.Get("/user?tab=settings")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/signin", rec.Header().Get(echo.HeaderLocation))

	rec = b.PostForm("/signin", signInForm("ada@example.com", "secret1"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/user?tab=settings", rec.Header().Get(echo.HeaderLocation))
	assert.Nil(t, b.Cookie(returnToCookieName), "return path is consumed")
}

func TestSignUp_CreatesAccountAndProfile(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()

	rec := b.PostForm("/signup", url.Values{
		"email":      {"grace@example.com"},
		"password":   {"hopper1"},
		"screenName": {"grace"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))

	acct, ok := app.provider.Account("grace@example.com")
	require.True(t, ok)
	assert.Equal(t, "grace", acct.DisplayName)

	profile, err := app.queries.GetProfile(context.Background(), acct.UID)
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", profile.Email)
	assert.Equal(t, "grace", profile.UserName)
	assert.False(t, profile.CreatedAt.IsZero())

	rec = b.Get("/user")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "grace")
}

func TestSignUp_Failures(t *testing.T) {
	app := newTestApp(t)
	app.provider.AddAccount("taken@example.com", "secret1", "")

	t.Run("existing email", func(t *testing.T) {
		b := app.browser()
		rec := b.PostForm("/signup", url.Values{
			"email":      {"taken@example.com"},
			"password":   {"secret1"},
			"screenName": {"taken"},
		})
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/signup", rec.Header().Get(echo.HeaderLocation))
		assert.Contains(t, b.Get("/signup").Body.String(), msgBadCredentials)
	})

	t.Run("short password", func(t *testing.T) {
		rec := app.browser().PostForm("/signup", url.Values{
			"email":      {"new@example.com"},
			"password":   {"abc"},
			"screenName": {"new"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "the length must be no less than 6")
		assert.NotContains(t, rec.Body.String(), `value="abc"`)
	})

	t.Run("missing screen name", func(t *testing.T) {
		rec := app.browser().PostForm("/signup", url.Values{
			"email":    {"new@example.com"},
			"password": {"secret1"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), `value="new@example.com"`)
	})

	assert.Equal(t, 1, app.provider.Calls("SignUp"))
}

func TestResetPassword(t *testing.T) {
	app := newTestApp(t)
	app.provider.AddAccount("ada@example.com", "secret1", "Ada")

	b := app.browser()
	rec := b.PostForm("/resetPassword", url.Values{"email": {"ada@example.com"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/resetPassword", rec.Header().Get(echo.HeaderLocation))
	assert.Contains(t, b.Get("/resetPassword").Body.String(), msgEmailSent)
	assert.Equal(t, []string{"ada@example.com"}, app.provider.Resets())

	b = app.browser()
	b.PostForm("/resetPassword", url.Values{"email": {"nobody@example.com"}})
	assert.Contains(t, b.Get("/resetPassword").Body.String(), msgResetFailed)

	app.provider.ResetErr = errors.New("smtp down")
	b = app.browser()
	b.PostForm("/resetPassword", url.Values{"email": {"ada@example.com"}})
	assert.Contains(t, b.Get("/resetPassword").Body.String(), msgResetFailed)
}

func TestSignOut(t *testing.T) {
	app := newTestApp(t)
	app.provider.AddAccount("ada@example.com", "secret1", "Ada")
	b := app.browser()

	b.PostForm("/signin", signInForm("ada@example.com", "secret1"))
	require.Equal(t, http.StatusOK, b.Get("/user").Code)

	require.Equal(t, 1, app.registry.Len())

	rec := b.PostForm("/signout", url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, 0, app.registry.Len(), "signed-out visitors are dropped")

	rec = b.Get("/user")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/signin", rec.Header().Get(echo.HeaderLocation))
}

func TestFieldErrors_UsesFormNames(t *testing.T) {
	err := SignUpPayload{}.Validate()
	require.Error(t, err)

	errs := fieldErrors(err)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
	assert.Contains(t, errs, "screenName")

	assert.Empty(t, fieldErrors(errors.New("other")))
}
