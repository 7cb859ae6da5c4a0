package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFirebase(t *testing.T, handler http.HandlerFunc) *Firebase {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f := NewFirebase(FirebaseConfig{
		APIKey:           "test-key",
		IdentityEndpoint: srv.URL + "/v1",
		TokenEndpoint:    srv.URL + "/token-v1",
	})
	f.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

func writeProviderError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": 400, "message": message},
	})
}

func TestFirebase_SignInWithPassword(t *testing.T) {
	f := newTestFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/accounts:signInWithPassword", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, "secret1", body["password"])
		assert.Equal(t, true, body["returnSecureToken"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"localId":      "uid-42",
			"email":        "ada@example.com",
			"displayName":  "Ada",
			"idToken":      "id-token",
			"refreshToken": "refresh-token",
			"expiresIn":    "3600",
		})
	})

	cred, err := f.SignInWithPassword(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "uid-42", cred.UID)
	assert.Equal(t, "Ada", cred.DisplayName)
	assert.Equal(t, "id-token", cred.IDToken)
	assert.Equal(t, "refresh-token", cred.RefreshToken)
	assert.Equal(t, time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC), cred.ExpiresAt)
}

func TestFirebase_CredentialErrors(t *testing.T) {
	codes := []string{
		"EMAIL_EXISTS",
		"EMAIL_NOT_FOUND",
		"INVALID_PASSWORD",
		"INVALID_LOGIN_CREDENTIALS",
		"WEAK_PASSWORD : Password should be at least 6 characters",
		"USER_DISABLED",
	}

	for _, code := range codes {
		t.Run(code, func(t *testing.T) {
			f := newTestFirebase(t, func(w http.ResponseWriter, r *http.Request) {
				writeProviderError(w, code)
			})

			_, err := f.SignUp(context.Background(), "ada@example.com", "pw")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCredentialRejected)
			assert.NotErrorIs(t, err, ErrSessionExpired)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		})
	}
}

func TestFirebase_WeakPasswordCodeIsTrimmed(t *testing.T) {
	f := newTestFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		writeProviderError(w, "WEAK_PASSWORD : Password should be at least 6 characters")
	})

	_, err := f.SignUp(context.Background(), "ada@example.com", "pw")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "WEAK_PASSWORD", apiErr.Code)
}

func TestFirebase_Refresh(t *testing.T) {
	f := newTestFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token-v1/token", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"expires_in":    "1800",
			"token_type":    "Bearer",
			"refresh_token": "new-refresh",
			"id_token":      "new-id",
			"user_id":       "uid-42",
		})
	})

	cred, err := f.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "uid-42", cred.UID)
	assert.Equal(t, "new-id", cred.IDToken)
	assert.Equal(t, "new-refresh", cred.RefreshToken)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC), cred.ExpiresAt)
}

func TestFirebase_RefreshRejected(t *testing.T) {
	f := newTestFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		writeProviderError(w, "INVALID_REFRESH_TOKEN")
	})

	_, err := f.Refresh(context.Background(), "stale")
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.NotErrorIs(t, err, ErrCredentialRejected)
}

func TestFirebase_SendPasswordResetEmail(t *testing.T) {
	f := newTestFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts:sendOobCode", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PASSWORD_RESET", body["requestType"])
		assert.Equal(t, "ada@example.com", body["email"])

		_ = json.NewEncoder(w).Encode(map[string]string{"email": "ada@example.com"})
	})

	require.NoError(t, f.SendPasswordResetEmail(context.Background(), "ada@example.com"))
}

func TestFirebase_UpdateProfileAndLookup(t *testing.T) {
	f := newTestFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "id-token", body["idToken"])

		switch r.URL.Path {
		case "/v1/accounts:update":
			assert.Equal(t, "Ada", body["displayName"])
			_ = json.NewEncoder(w).Encode(map[string]any{"localId": "uid-42", "displayName": "Ada"})
		case "/v1/accounts:lookup":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"users": []map[string]any{{"localId": "uid-42", "email": "ada@example.com", "displayName": "Ada"}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	updated, err := f.UpdateProfile(context.Background(), "id-token", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.DisplayName)
	assert.Empty(t, updated.IDToken)
	assert.True(t, updated.ExpiresAt.IsZero())

	account, err := f.Lookup(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", account.Email)
}

func TestFirebase_LookupWithoutUsers(t *testing.T) {
	f := newTestFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"users": []any{}})
	})

	_, err := f.Lookup(context.Background(), "id-token")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestFirebase_UnparseableErrorBody(t *testing.T) {
	f := newTestFirebase(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := f.SignInWithPassword(context.Background(), "a@example.com", "pw")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.NotErrorIs(t, err, ErrCredentialRejected)
}
