package service

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/loganlanou/authgate/internal/auth"
	"github.com/loganlanou/authgate/internal/identity/identitytest"
	"github.com/loganlanou/authgate/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// fakeTokenVerifier accepts the ID tokens minted by identitytest, which
// look like "id-<uid>-<n>".
type fakeTokenVerifier struct{}

func (fakeTokenVerifier) Verify(_ context.Context, token string) (*auth.Claims, error) {
	rest, ok := strings.CutPrefix(token, "id-")
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	idx := strings.LastIndex(rest, "-")
	if idx <= 0 {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{Subject: rest[:idx]}, nil
}

type testEnv struct {
	echo     *echo.Echo
	server   *httptest.Server
	service  *Service
	storage  *storage.Storage
	provider *identitytest.Provider
}

func testConfig() *Config {
	cfg := &Config{
		Environment: "test",
		Port:        "8080",
		BaseURL:     "http://localhost:8080",
		RateLimit:   100,
	}
	cfg.Session.Secret = "test-secret-test-secret-test-sec"
	cfg.Firebase.APIKey = "test-key"
	cfg.Firebase.ProjectID = "test-project"
	cfg.Verifier.Kind = "firebase"
	cfg.Gate.Wait = 2 * time.Second
	cfg.Gate.AuthIdleTTL = time.Hour
	return cfg
}

// setupTestEnv serves the full route table over a real listener so the
// profile page can reach /api/userid on the same server.
func setupTestEnv(t *testing.T, tweak ...func(*Config)) *testEnv {
	t.Helper()

	database, _, cleanup, err := storage.NewTestDB()
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(cleanup)
	store := storage.NewWithDB(database)

	e := echo.New()
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	cfg := testConfig()
	cfg.Backend.URL = srv.URL + "/api"
	for _, fn := range tweak {
		fn(cfg)
	}

	provider := identitytest.New()
	svc, err := NewWithDeps(store, cfg, Deps{
		Provider: provider,
		Verifier: fakeTokenVerifier{},
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	t.Cleanup(svc.Close)
	svc.RegisterRoutes(e)

	return &testEnv{
		echo:     e,
		server:   srv,
		service:  svc,
		storage:  store,
		provider: provider,
	}
}
