package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/loganlanou/authgate/internal/gate"
	appmw "github.com/loganlanou/authgate/internal/middleware"
	"github.com/loganlanou/authgate/internal/session"
	"github.com/loganlanou/authgate/internal/userid"
	"github.com/loganlanou/authgate/storage/db"
	"github.com/loganlanou/authgate/views/account"
)

const (
	msgLookupUnauthenticated = "You are not signed in."
	msgLookupTokenFailed     = "Could not obtain an identity token. Please sign in again."
	msgLookupRemoteFailed    = "Could not reach the identity service. Please try again later."
)

type UserHandler struct {
	pages    *Pages
	sessions *session.Manager
	queries  *db.Queries
	lookup   *userid.Client
}

func NewUserHandler(pages *Pages, sessions *session.Manager, queries *db.Queries, lookup *userid.Client) *UserHandler {
	return &UserHandler{
		pages:    pages,
		sessions: sessions,
		queries:  queries,
		lookup:   lookup,
	}
}

// HandleProfile shows the signed-in visitor's profile and internal user id.
// It runs behind the gate, so a principal is always present.
func (h *UserHandler) HandleProfile(c echo.Context) error {
	ctx := c.Request().Context()

	principal, ok := gate.PrincipalFrom(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/signin")
	}

	var data account.UserData

	profile, err := h.queries.GetProfile(ctx, principal.UID)
	switch {
	case err == nil:
		data.Profile = &profile
	case errors.Is(err, sql.ErrNoRows):
	default:
		slog.Error("failed to load profile", "error", err, "uid", principal.UID)
	}

	auth := appmw.AuthFrom(c)
	var src userid.TokenSource
	if auth != nil {
		src = auth
	}
	ident, err := h.lookup.ResolveUserID(ctx, src)
	if err != nil {
		slog.Warn("user id lookup failed", "error", err, "uid", principal.UID)
		data.LookupError = lookupMessage(err)
	} else {
		data.InternalID = ident.ID
	}

	// the token may have been refreshed during the lookup
	persistRefreshToken(c, h.sessions, auth)

	return Render(c, http.StatusOK, account.UserPage(h.pages.Page(c, "Profile"), data))
}

// HandleLoading renders the page shown while the gate is still pending.
func (h *UserHandler) HandleLoading(c echo.Context) error {
	return Render(c, http.StatusOK, account.Loading(h.pages.Page(c, "Loading")))
}

func lookupMessage(err error) string {
	switch {
	case errors.Is(err, userid.ErrUnauthenticated):
		return msgLookupUnauthenticated
	case errors.Is(err, userid.ErrTokenFetchFailed):
		return msgLookupTokenFailed
	default:
		return msgLookupRemoteFailed
	}
}
