package auth

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned for any bearer token that fails
// verification: bad signature, wrong issuer or audience, expired, or no
// subject.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified identity carried by a bearer token.
type Claims struct {
	Subject string
	Email   string
}

// Verifier checks a bearer token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}
