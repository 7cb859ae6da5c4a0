package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkjwt "github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/clerk/clerk-sdk-go/v2/user"
)

// ClerkVerifier verifies Clerk session tokens. The email is looked up
// through the Clerk user API.
type ClerkVerifier struct{}

// NewClerkVerifier configures the Clerk SDK with secretKey.
func NewClerkVerifier(secretKey string) *ClerkVerifier {
	clerk.SetKey(secretKey)
	return &ClerkVerifier{}
}

func (v *ClerkVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := clerkjwt.Verify(ctx, &clerkjwt.VerifyParams{
		Token: token,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	out := &Claims{Subject: claims.Subject}

	clerkUser, err := user.Get(ctx, claims.Subject)
	if err != nil {
		slog.Warn("failed to fetch clerk user", "error", err, "user_id", claims.Subject)
		return out, nil
	}
	out.Email = primaryEmail(clerkUser)

	return out, nil
}

func primaryEmail(u *clerk.User) string {
	if u == nil || len(u.EmailAddresses) == 0 {
		return ""
	}
	if u.PrimaryEmailAddressID != nil {
		for _, email := range u.EmailAddresses {
			if email.ID == *u.PrimaryEmailAddressID {
				return email.EmailAddress
			}
		}
	}
	return u.EmailAddresses[0].EmailAddress
}
