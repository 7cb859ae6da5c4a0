package service

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/loganlanou/authgate/internal/auth"
	"github.com/loganlanou/authgate/internal/gate"
	"github.com/loganlanou/authgate/internal/handlers"
	"github.com/loganlanou/authgate/internal/identity"
	"github.com/loganlanou/authgate/internal/metrics"
	appmw "github.com/loganlanou/authgate/internal/middleware"
	"github.com/loganlanou/authgate/internal/recaptcha"
	"github.com/loganlanou/authgate/internal/session"
	"github.com/loganlanou/authgate/internal/userid"
	"github.com/loganlanou/authgate/storage"
	"github.com/loganlanou/authgate/views/home"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

type Service struct {
	storage  *storage.Storage
	config   *Config
	registry *identity.Registry
	sessions *session.Manager
	verifier auth.Verifier
	metrics  *metrics.Collector
	gatherer prometheus.Gatherer

	pages         *handlers.Pages
	returnTo      handlers.ReturnTo
	authHandler   *handlers.AuthHandler
	userHandler   *handlers.UserHandler
	userIDHandler *handlers.UserIDHandler
}

// Deps are the collaborators New would otherwise build from the config.
// Zero fields are built as usual.
type Deps struct {
	Provider identity.Provider
	Verifier auth.Verifier
	Registry *prometheus.Registry
}

func New(store *storage.Storage, config *Config) (*Service, error) {
	return NewWithDeps(store, config, Deps{})
}

func NewWithDeps(store *storage.Storage, config *Config, deps Deps) (*Service, error) {
	provider := deps.Provider
	if provider == nil {
		provider = identity.NewFirebase(identity.FirebaseConfig{
			APIKey:           config.Firebase.APIKey,
			IdentityEndpoint: config.Firebase.IdentityEndpoint,
			TokenEndpoint:    config.Firebase.TokenEndpoint,
		})
	}

	verifier := deps.Verifier
	if verifier == nil {
		v, err := newVerifier(config)
		if err != nil {
			return nil, err
		}
		verifier = v
	}

	promRegistry := deps.Registry
	if promRegistry == nil {
		promRegistry = prometheus.NewRegistry()
	}
	collector := metrics.NewCollector(promRegistry)

	sessions := session.NewManager(config.Session.Secret, config.IsProduction())
	pages := &handlers.Pages{Sessions: sessions, SiteURL: config.BaseURL}
	returnTo := handlers.ReturnTo{Secure: config.IsProduction()}

	opts := []userid.Option{userid.WithRecorder(collector)}
	if config.Backend.Timeout > 0 {
		opts = append(opts, userid.WithHTTPClient(&http.Client{Timeout: config.Backend.Timeout}))
	}
	resolver := userid.NewClient(config.Backend.URL, opts...)

	var captcha *recaptcha.Verifier
	if config.Recaptcha.SecretKey != "" {
		captcha = recaptcha.NewVerifier(config.Recaptcha.SecretKey, config.Recaptcha.MinScore)
	}

	registry := identity.NewRegistry(provider, config.Gate.AuthIdleTTL)

	s := &Service{
		storage:  store,
		config:   config,
		registry: registry,
		sessions: sessions,
		verifier: verifier,
		metrics:  collector,
		gatherer: promRegistry,
		pages:    pages,
		returnTo: returnTo,
		authHandler: handlers.NewAuthHandler(handlers.AuthHandlerConfig{
			Pages:            pages,
			Sessions:         sessions,
			Queries:          store.Queries,
			ReturnTo:         returnTo,
			Recaptcha:        captcha,
			RecaptchaSiteKey: config.Recaptcha.SiteKey,
			Metrics:          collector,
		}),
		userHandler:   handlers.NewUserHandler(pages, sessions, store.Queries, resolver),
		userIDHandler: handlers.NewUserIDHandler(auth.NewService(store.Queries)),
	}

	slog.Info("service configured",
		"verifier", config.Verifier.Kind,
		"backend", resolver.BaseURL(),
		"recaptcha", captcha != nil,
	)
	return s, nil
}

func newVerifier(config *Config) (auth.Verifier, error) {
	switch config.Verifier.Kind {
	case "clerk":
		return auth.NewClerkVerifier(config.Verifier.ClerkSecretKey), nil
	case "firebase", "":
		v, err := auth.NewFirebaseVerifier(config.Firebase.ProjectID, auth.GoogleJWKSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create firebase verifier: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown token verifier %q", config.Verifier.Kind)
	}
}

// Close releases background resources.
func (s *Service) Close() {
	s.registry.Close()
	if c, ok := s.verifier.(interface{ Close() }); ok {
		c.Close()
	}
}

func (s *Service) RegisterRoutes(e *echo.Echo) {
	// Health and metrics - no session
	e.GET("/health", handlers.HandleHealth(s.storage))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(s.gatherer)))

	// Backend identity endpoint - bearer token only
	api := e.Group("/api")
	api.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{strings.TrimSuffix(s.config.BaseURL, "/")},
		AllowMethods: []string{http.MethodGet},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderAccept},
	}))
	api.GET("/userid", s.userIDHandler.HandleUserID, auth.BearerAuth(s.verifier))

	// Pages get the visitor session, CSRF protection and rate limited posts
	pages := e.Group("")
	pages.Use(appmw.LoadSession(s.sessions, s.registry))
	pages.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   s.config.IsProduction(),
		CookieSameSite: http.SameSiteLaxMode,
	}))
	pages.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().Method != http.MethodPost
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(s.config.RateLimit),
			Burst: max(1, int(s.config.RateLimit*5)),
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			slog.Warn("rate limit exceeded", "ip", identifier, "path", c.Request().URL.Path)
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
		},
	}))

	pages.GET("/", s.handleHome)

	pages.GET("/signin", s.authHandler.HandleSignInPage)
	pages.POST("/signin", s.authHandler.HandleSignIn)
	pages.GET("/signup", s.authHandler.HandleSignUpPage)
	pages.POST("/signup", s.authHandler.HandleSignUp)
	pages.GET("/resetPassword", s.authHandler.HandleResetPage)
	pages.POST("/resetPassword", s.authHandler.HandleReset)
	pages.POST("/signout", s.authHandler.HandleSignOut)

	// Guarded routes. Route level middleware so unknown paths still 404.
	requireAuth := gate.Require(gate.Config{
		SignInPath:     "/signin",
		Wait:           s.config.Gate.Wait,
		SourceFrom:     appmw.GateSource,
		Loading:        s.userHandler.HandleLoading,
		BeforeRedirect: s.returnTo.Remember,
		OnDecision: func(state gate.State) {
			s.metrics.RecordGateDecision(state.String())
		},
	})
	pages.GET("/user", s.userHandler.HandleProfile, requireAuth)

	// Legacy paths
	pages.GET("/reset_password", redirectTo("/resetPassword"))
	pages.GET("/user_page", redirectTo("/user"))
}

func (s *Service) handleHome(c echo.Context) error {
	slog.Debug("home page requested", "ip", c.RealIP())
	return handlers.Render(c, http.StatusOK, home.Home(s.pages.Page(c, "Home")))
}

func redirectTo(path string) echo.HandlerFunc {
	return func(c echo.Context) error {
		target := path
		if q := c.QueryString(); q != "" && !strings.Contains(path, "?") {
			target += "?" + q
		}
		return c.Redirect(http.StatusMovedPermanently, target)
	}
}
