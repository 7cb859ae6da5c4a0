package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        string `env:"PORT"        envDefault:"8000"`
	BaseURL     string `env:"BASE_URL"    envDefault:"http://localhost:8000"`
	DBPath      string `env:"DB_PATH"     envDefault:"./db/authgate.db"`

	// Backend is where internal user ids are looked up. It defaults to
	// this server's own /api.
	Backend struct {
		URL     string        `env:"BACKEND_URL"`
		Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"0s"`
	}

	Session struct {
		Secret string `env:"SESSION_SECRET" envDefault:"development-secret-change-me!!!!"`
	}

	Firebase struct {
		APIKey           string `env:"FIREBASE_API_KEY"`
		ProjectID        string `env:"FIREBASE_PROJECT_ID"`
		IdentityEndpoint string `env:"IDENTITY_ENDPOINT"`
		TokenEndpoint    string `env:"TOKEN_ENDPOINT"`
	}

	Verifier struct {
		// Kind is "firebase" or "clerk".
		Kind           string `env:"TOKEN_VERIFIER"   envDefault:"firebase"`
		ClerkSecretKey string `env:"CLERK_SECRET_KEY"`
	}

	Gate struct {
		Wait        time.Duration `env:"GATE_WAIT"     envDefault:"2s"`
		AuthIdleTTL time.Duration `env:"AUTH_IDLE_TTL" envDefault:"24h"`
	}

	// RateLimit is the sustained number of form posts per second allowed
	// per client IP.
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"1"`

	Recaptcha struct {
		SiteKey   string  `env:"RECAPTCHA_SITE_KEY"`
		SecretKey string  `env:"RECAPTCHA_SECRET_KEY"`
		MinScore  float64 `env:"RECAPTCHA_MIN_SCORE" envDefault:"0.5"`
	}
}

// LoadConfig parses the environment and validates the result.
func LoadConfig() (*Config, error) {
	config, err := ParseConfig()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ParseConfig parses the environment without validating it.
func ParseConfig() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if config.Backend.URL == "" {
		config.Backend.URL = config.ownAPI()
	}
	return config, nil
}

// ownAPI is this server's /api, the default identity backend.
func (c *Config) ownAPI() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/api"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.Firebase.APIKey == "" {
		errs = append(errs, errors.New("FIREBASE_API_KEY is required"))
	}
	if len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}
	if c.IsProduction() && c.Session.Secret == defaultSessionSecret {
		errs = append(errs, errors.New("SESSION_SECRET must be set in production"))
	}

	switch c.Verifier.Kind {
	case "firebase":
		if c.Firebase.ProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required for the firebase verifier"))
		}
	case "clerk":
		if c.Verifier.ClerkSecretKey == "" {
			errs = append(errs, errors.New("CLERK_SECRET_KEY is required for the clerk verifier"))
		}
		// pages sign in through Firebase, so their lookups need a backend
		// that accepts Firebase tokens
		if strings.TrimSuffix(c.Backend.URL, "/") == c.ownAPI() {
			errs = append(errs, errors.New("BACKEND_URL must point at another backend when TOKEN_VERIFIER is clerk"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TOKEN_VERIFIER %q", c.Verifier.Kind))
	}

	if c.Gate.Wait < 0 {
		errs = append(errs, errors.New("GATE_WAIT must not be negative"))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT must be positive"))
	}

	return errors.Join(errs...)
}

const defaultSessionSecret = "development-secret-change-me!!!!"
