package identity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCredentialRejected is returned when the provider refuses sign-in or
	// sign-up input (unknown email, wrong password, weak password, ...).
	ErrCredentialRejected = errors.New("credential rejected")

	// ErrNoCurrentUser is returned by operations that need a signed-in user.
	ErrNoCurrentUser = errors.New("no authenticated user")

	// ErrSessionExpired is returned when the provider no longer accepts the
	// refresh or ID token of the current session.
	ErrSessionExpired = errors.New("session expired")
)

// APIError is an error body returned by the identity provider.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" && e.Message != e.Code {
		return fmt.Sprintf("identity provider error %d: %s (%s)", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity provider error %d: %s", e.Status, e.Code)
}

// Is maps provider error codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrCredentialRejected:
		return isCredentialCode(e.Code)
	case ErrSessionExpired:
		return isSessionCode(e.Code)
	}
	return false
}

func isCredentialCode(code string) bool {
	switch code {
	case "EMAIL_EXISTS",
		"EMAIL_NOT_FOUND",
		"INVALID_PASSWORD",
		"INVALID_LOGIN_CREDENTIALS",
		"INVALID_EMAIL",
		"MISSING_PASSWORD",
		"MISSING_EMAIL",
		"USER_DISABLED":
		return true
	}
	// WEAK_PASSWORD comes back as "WEAK_PASSWORD : Password should be at least 6 characters"
	return strings.HasPrefix(code, "WEAK_PASSWORD")
}

func isSessionCode(code string) bool {
	switch code {
	case "TOKEN_EXPIRED",
		"INVALID_REFRESH_TOKEN",
		"INVALID_GRANT_TYPE",
		"MISSING_REFRESH_TOKEN",
		"USER_NOT_FOUND",
		"INVALID_ID_TOKEN",
		"CREDENTIAL_TOO_OLD_LOGIN_AGAIN":
		return true
	}
	return false
}
