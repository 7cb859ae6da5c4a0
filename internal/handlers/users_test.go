package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/loganlanou/authgate/internal/userid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_LookupFailureShowsNotice(t *testing.T) {
	app := newTestApp(t)
	app.provider.AddAccount("ada@example.com", "secret1", "Ada")
	app.backendStatus = http.StatusBadGateway
	b := app.browser()

	b.PostForm("/signin", signInForm("ada@example.com", "secret1"))

	rec := b.Get("/user")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), msgLookupRemoteFailed)
	assert.Contains(t, rec.Body.String(), "ada@example.com", "the rest of the page still renders")
}

func TestProfile_ShowsStoredProfile(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()

	b.PostForm("/signup", url.Values{
		"email":      {"linus@example.com"},
		"password":   {"penguin"},
		"screenName": {"torvalds"},
	})

	rec := b.Get("/user")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "torvalds")
	assert.Contains(t, rec.Body.String(), "Member since")
}

func TestProfile_NoProfileRecord(t *testing.T) {
	app := newTestApp(t)
	app.provider.AddAccount("ada@example.com", "secret1", "Ada")
	b := app.browser()

	b.PostForm("/signin", signInForm("ada@example.com", "secret1"))

	rec := b.Get("/user")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Member since")
}

func TestLookupMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{userid.ErrUnauthenticated, msgLookupUnauthenticated},
		{fmt.Errorf("%w: boom", userid.ErrTokenFetchFailed), msgLookupTokenFailed},
		{&userid.RemoteError{StatusCode: 500}, msgLookupRemoteFailed},
		{errors.New("anything else"), msgLookupRemoteFailed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, lookupMessage(tt.err), tt.err.Error())
	}
}

func TestProfile_WithoutGateRedirects(t *testing.T) {
	_, queries, cleanup := NewTestDB()
	defer cleanup()

	h := NewUserHandler(&Pages{}, nil, queries, userid.NewClient("http://127.0.0.1:0"))
	c, rec := NewTestContext(http.MethodGet, "/user", nil)

	require.NoError(t, h.HandleProfile(c))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}
