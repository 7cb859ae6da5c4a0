package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProject = "authgate-test"

func newSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims() *firebaseClaims {
	now := time.Now()
	return &firebaseClaims{
		Email: "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://securetoken.google.com/" + testProject,
			Audience:  jwt.ClaimStrings{testProject},
			Subject:   "uid-42",
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func staticKeyfunc(key *rsa.PrivateKey) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}
}

func TestFirebaseVerifier_Valid(t *testing.T) {
	key := newSigningKey(t)
	v := NewFirebaseVerifierWithKeyfunc(testProject, staticKeyfunc(key))

	claims, err := v.Verify(context.Background(), signToken(t, key, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "uid-42", claims.Subject)
	assert.Equal(t, "ada@example.com", claims.Email)
}

func TestFirebaseVerifier_Rejects(t *testing.T) {
	key := newSigningKey(t)
	other := newSigningKey(t)

	tests := []struct {
		name   string
		mutate func(c *firebaseClaims)
		signer *rsa.PrivateKey
	}{
		{"wrong issuer", func(c *firebaseClaims) { c.Issuer = "https://securetoken.google.com/other" }, key},
		{"wrong audience", func(c *firebaseClaims) { c.Audience = jwt.ClaimStrings{"other"} }, key},
		{"expired", func(c *firebaseClaims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) }, key},
		{"no expiry", func(c *firebaseClaims) { c.ExpiresAt = nil }, key},
		{"issued in the future", func(c *firebaseClaims) { c.IssuedAt = jwt.NewNumericDate(time.Now().Add(time.Hour)) }, key},
		{"missing subject", func(c *firebaseClaims) { c.Subject = "" }, key},
		{"foreign key", func(c *firebaseClaims) {}, other},
	}

	v := NewFirebaseVerifierWithKeyfunc(testProject, staticKeyfunc(key))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClaims()
			tt.mutate(c)

			_, err := v.Verify(context.Background(), signToken(t, tt.signer, c))
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestFirebaseVerifier_RejectsHMAC(t *testing.T) {
	v := NewFirebaseVerifierWithKeyfunc(testProject, func(*jwt.Token) (any, error) {
		return []byte("shared"), nil
	})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	signed, err := token.SignedString([]byte("shared"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewFirebaseVerifier_FetchesJWKS(t *testing.T) {
	key := newSigningKey(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	}))
	defer srv.Close()

	v, err := NewFirebaseVerifier(testProject, srv.URL)
	require.NoError(t, err)
	defer v.Close()

	claims, err := v.Verify(context.Background(), signToken(t, key, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "uid-42", claims.Subject)
}
