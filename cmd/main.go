package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/loganlanou/authgate/internal/identity"
	appmw "github.com/loganlanou/authgate/internal/middleware"
	"github.com/loganlanou/authgate/internal/userid"
	"github.com/loganlanou/authgate/service"
	"github.com/loganlanou/authgate/storage"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "authgate",
		Short:         "Account portal with sign-in, sign-up, password reset and a guarded profile page",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogging(defaultLogOutput(), logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv("LOG_LEVEL"), "debug, info, warn or error (defaults to $LOG_LEVEL)")
	root.AddCommand(newServeCmd(), newMigrateCmd(), newUserIDCmd(), newSeedCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	config, err := service.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := storage.New(config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(appmw.RequestLogger())
	e.Use(appmw.SecurityHeaders())

	svc, err := service.New(db, config)
	if err != nil {
		return err
	}
	defer svc.Close()
	svc.RegisterRoutes(e)

	addr := fmt.Sprintf(":%s", config.Port)
	slog.Info("authgate starting",
		"url", config.BaseURL,
		"port", config.Port,
		"environment", config.Environment,
		"database", config.DBPath,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			config, err := service.ParseConfig()
			if err != nil {
				return err
			}
			db, err := storage.New(config.DBPath)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

func newUserIDCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "userid",
		Short: "Sign in and print the internal user id the backend assigns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := service.ParseConfig()
			if err != nil {
				return err
			}
			if config.Firebase.APIKey == "" {
				return errors.New("FIREBASE_API_KEY is required")
			}

			ctx := cmd.Context()
			auth := identity.NewAuth(identity.NewFirebase(identity.FirebaseConfig{
				APIKey:           config.Firebase.APIKey,
				IdentityEndpoint: config.Firebase.IdentityEndpoint,
				TokenEndpoint:    config.Firebase.TokenEndpoint,
			}))
			if _, err := auth.SignIn(ctx, email, password); err != nil {
				return fmt.Errorf("sign in: %w", err)
			}
			defer auth.SignOut()

			var opts []userid.Option
			if config.Backend.Timeout > 0 {
				opts = append(opts, userid.WithHTTPClient(&http.Client{Timeout: config.Backend.Timeout}))
			}
			ident, err := userid.NewClient(config.Backend.URL, opts...).ResolveUserID(ctx, auth)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), ident.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", os.Getenv("AUTHGATE_PASSWORD"), "account password (defaults to $AUTHGATE_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var count int
	var seed uint64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert fake accounts for local development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := service.ParseConfig()
			if err != nil {
				return err
			}
			if config.IsProduction() {
				return errors.New("refusing to seed a production database")
			}

			db, err := storage.New(config.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := storage.Seed(cmd.Context(), db.DB(), count, seed)
			if err != nil {
				return err
			}
			slog.Info("seeded fake accounts", "count", len(res.PrincipalIDs), "database", config.DBPath)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 25, "number of accounts")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	return cmd
}
