package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/labstack/echo/v4"
	"github.com/loganlanou/authgate/internal/identity"
	"github.com/loganlanou/authgate/internal/metrics"
	appmw "github.com/loganlanou/authgate/internal/middleware"
	"github.com/loganlanou/authgate/internal/recaptcha"
	"github.com/loganlanou/authgate/internal/session"
	"github.com/loganlanou/authgate/storage/db"
	authviews "github.com/loganlanou/authgate/views/auth"
)

const (
	msgBadCredentials = "Bad User Credentials"
	msgEmailSent      = "Email sent"
	msgResetFailed    = "Could not send reset email"
)

// SignInPayload is the sign-in form.
type SignInPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (r SignInPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// SignUpPayload is the registration form.
type SignUpPayload struct {
	Email      string `form:"email" json:"email"`
	Password   string `form:"password" json:"password"`
	ScreenName string `form:"screenName" json:"screenName"`
}

func (r SignUpPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 0)),
		validation.Field(&r.ScreenName, validation.Required, validation.Length(1, 64)),
	)
}

// ResetPayload is the password reset form.
type ResetPayload struct {
	Email string `form:"email" json:"email"`
}

func (r ResetPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// AuthHandler serves the sign-in, sign-up, password reset and sign-out
// screens.
type AuthHandler struct {
	pages            *Pages
	sessions         *session.Manager
	registry         *identity.Registry
	queries          *db.Queries
	returnTo         ReturnTo
	recaptcha        *recaptcha.Verifier
	recaptchaSiteKey string
	metrics          metrics.Recorder
	now              func() time.Time
}

type AuthHandlerConfig struct {
	Pages    *Pages
	Sessions *session.Manager
	Registry *identity.Registry
	Queries  *db.Queries
	ReturnTo ReturnTo
	// Recaptcha, when set, guards sign-up.
	Recaptcha        *recaptcha.Verifier
	RecaptchaSiteKey string
	Metrics          metrics.Recorder
}

func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &AuthHandler{
		pages:            cfg.Pages,
		sessions:         cfg.Sessions,
		registry:         cfg.Registry,
		queries:          cfg.Queries,
		returnTo:         cfg.ReturnTo,
		recaptcha:        cfg.Recaptcha,
		recaptchaSiteKey: cfg.RecaptchaSiteKey,
		metrics:          rec,
		now:              time.Now,
	}
}

func (h *AuthHandler) HandleSignInPage(c echo.Context) error {
	return Render(c, http.StatusOK, authviews.SignIn(h.pages.Page(c, "Sign In"), authviews.Form{}))
}

func (h *AuthHandler) HandleSignIn(c echo.Context) error {
	payload := SignInPayload{
		Email:    strings.TrimSpace(c.FormValue("email")),
		Password: c.FormValue("password"),
	}
	if err := payload.Validate(); err != nil {
		form := authviews.Form{Email: payload.Email, Errors: fieldErrors(err)}
		return Render(c, http.StatusUnprocessableEntity, authviews.SignIn(h.pages.Page(c, "Sign In"), form))
	}

	auth := appmw.AuthFrom(c)
	if auth == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "No session")
	}

	if _, err := auth.SignIn(c.Request().Context(), payload.Email, payload.Password); err != nil {
		h.recordFailure("signin", err)
		return h.flashRedirect(c, session.FlashError, msgBadCredentials, "/signin")
	}
	h.metrics.RecordAuthOperation("signin", "ok")

	h.persist(c, auth)

	dest := h.returnTo.Pop(c)
	if dest == "" {
		dest = "/user"
	}
	return c.Redirect(http.StatusSeeOther, dest)
}

func (h *AuthHandler) HandleSignUpPage(c echo.Context) error {
	form := authviews.Form{RecaptchaSiteKey: h.recaptchaSiteKey}
	return Render(c, http.StatusOK, authviews.SignUp(h.pages.Page(c, "Sign Up"), form))
}

func (h *AuthHandler) HandleSignUp(c echo.Context) error {
	ctx := c.Request().Context()

	payload := SignUpPayload{
		Email:      strings.TrimSpace(c.FormValue("email")),
		Password:   c.FormValue("password"),
		ScreenName: strings.TrimSpace(c.FormValue("screenName")),
	}
	if err := payload.Validate(); err != nil {
		form := authviews.Form{
			Email:            payload.Email,
			ScreenName:       payload.ScreenName,
			Errors:           fieldErrors(err),
			RecaptchaSiteKey: h.recaptchaSiteKey,
		}
		return Render(c, http.StatusUnprocessableEntity, authviews.SignUp(h.pages.Page(c, "Sign Up"), form))
	}

	if h.recaptcha != nil {
		ok, score, err := h.recaptcha.IsValid(ctx, c.FormValue("g-recaptcha-response"))
		if err != nil || !ok {
			slog.Warn("sign-up failed recaptcha", "error", err, "score", score, "ip", c.RealIP())
			h.metrics.RecordAuthOperation("signup", "recaptcha")
			return h.flashRedirect(c, session.FlashError, msgBadCredentials, "/signup")
		}
	}

	auth := appmw.AuthFrom(c)
	if auth == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "No session")
	}

	principal, err := auth.SignUp(ctx, payload.Email, payload.Password)
	if err != nil {
		h.recordFailure("signup", err)
		return h.flashRedirect(c, session.FlashError, msgBadCredentials, "/signup")
	}
	h.persist(c, auth)

	// the account exists from here on; later failures only lose the
	// display name or the profile record
	if err := auth.UpdateProfile(ctx, payload.ScreenName); err != nil {
		slog.Error("failed to set display name", "error", err, "uid", principal.UID)
		h.metrics.RecordAuthOperation("signup", "error")
		return h.flashRedirect(c, session.FlashError, msgBadCredentials, "/signup")
	}

	err = h.queries.CreateProfile(ctx, db.CreateProfileParams{
		ID:        principal.UID,
		Email:     payload.Email,
		UserName:  payload.ScreenName,
		CreatedAt: h.now().UTC(),
	})
	if err != nil {
		slog.Error("failed to create profile", "error", err, "uid", principal.UID)
		h.metrics.RecordAuthOperation("signup", "error")
		return h.flashRedirect(c, session.FlashError, msgBadCredentials, "/signup")
	}

	h.metrics.RecordAuthOperation("signup", "ok")
	slog.Info("account created", "uid", principal.UID)
	return c.Redirect(http.StatusSeeOther, "/")
}

func (h *AuthHandler) HandleResetPage(c echo.Context) error {
	return Render(c, http.StatusOK, authviews.ResetPassword(h.pages.Page(c, "Reset Password"), authviews.Form{}))
}

func (h *AuthHandler) HandleReset(c echo.Context) error {
	payload := ResetPayload{Email: strings.TrimSpace(c.FormValue("email"))}
	if err := payload.Validate(); err != nil {
		form := authviews.Form{Email: payload.Email, Errors: fieldErrors(err)}
		return Render(c, http.StatusUnprocessableEntity, authviews.ResetPassword(h.pages.Page(c, "Reset Password"), form))
	}

	auth := appmw.AuthFrom(c)
	if auth == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "No session")
	}

	if err := auth.SendPasswordReset(c.Request().Context(), payload.Email); err != nil {
		h.recordFailure("reset", err)
		return h.flashRedirect(c, session.FlashError, msgResetFailed, "/resetPassword")
	}

	h.metrics.RecordAuthOperation("reset", "ok")
	return h.flashRedirect(c, session.FlashSuccess, msgEmailSent, "/resetPassword")
}

func (h *AuthHandler) HandleSignOut(c echo.Context) error {
	if auth := appmw.AuthFrom(c); auth != nil {
		auth.SignOut()
	}
	if data := appmw.SessionFrom(c); data != nil && h.registry != nil {
		h.registry.Forget(data.VisitorKey)
	}
	if err := h.sessions.Clear(c); err != nil {
		slog.Warn("failed to clear session", "error", err)
	}
	h.metrics.RecordAuthOperation("signout", "ok")
	return c.Redirect(http.StatusSeeOther, "/")
}

// persist writes the current refresh token to the cookie so the session
// survives the auth object being swept.
func (h *AuthHandler) persist(c echo.Context, auth *identity.Auth) {
	persistRefreshToken(c, h.sessions, auth)
}

func (h *AuthHandler) recordFailure(op string, err error) {
	if errors.Is(err, identity.ErrCredentialRejected) {
		slog.Debug("credentials rejected", "op", op, "error", err)
		h.metrics.RecordAuthOperation(op, "rejected")
		return
	}
	slog.Error("identity provider call failed", "op", op, "error", err)
	h.metrics.RecordAuthOperation(op, "error")
}

func (h *AuthHandler) flashRedirect(c echo.Context, kind session.FlashKind, message, to string) error {
	if err := h.sessions.AddFlash(c, kind, message); err != nil {
		slog.Warn("failed to queue flash", "error", err)
	}
	return c.Redirect(http.StatusSeeOther, to)
}

func persistRefreshToken(c echo.Context, sessions *session.Manager, auth *identity.Auth) {
	data := appmw.SessionFrom(c)
	if data == nil || auth == nil {
		return
	}
	token := auth.RefreshToken()
	if token == data.RefreshToken {
		return
	}
	data.RefreshToken = token
	if err := sessions.Save(c, data); err != nil {
		slog.Warn("failed to persist refresh token", "error", err)
	}
}

// fieldErrors flattens validation errors into messages keyed by field.
func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
	}
	return out
}
