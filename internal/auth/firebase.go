package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// GoogleJWKSURL serves the keys that sign Firebase ID tokens.
const GoogleJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

// FirebaseVerifier verifies Firebase ID tokens for one project.
type FirebaseVerifier struct {
	projectID string
	keyfunc   jwt.Keyfunc
	jwks      *keyfunc.JWKS
}

type firebaseClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewFirebaseVerifier fetches the signing keys from jwksURL and keeps them
// refreshed in the background until Close.
func NewFirebaseVerifier(projectID, jwksURL string) (*FirebaseVerifier, error) {
	if jwksURL == "" {
		jwksURL = GoogleJWKSURL
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			slog.Warn("failed to refresh firebase signing keys", "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load firebase signing keys: %w", err)
	}

	v := NewFirebaseVerifierWithKeyfunc(projectID, jwks.Keyfunc)
	v.jwks = jwks
	return v, nil
}

// NewFirebaseVerifierWithKeyfunc builds a verifier around a fixed key
// lookup.
func NewFirebaseVerifierWithKeyfunc(projectID string, kf jwt.Keyfunc) *FirebaseVerifier {
	return &FirebaseVerifier{
		projectID: projectID,
		keyfunc:   kf,
	}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims := &firebaseClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, v.keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
	}, nil
}

// Close stops the background key refresh.
func (v *FirebaseVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
