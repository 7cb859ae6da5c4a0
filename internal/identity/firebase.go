package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultIdentityEndpoint = "https://identitytoolkit.googleapis.com/v1"
	DefaultTokenEndpoint    = "https://securetoken.googleapis.com/v1"

	defaultTimeout = 30 * time.Second
)

// Credential is what the provider hands back after a successful sign-in,
// sign-up or token refresh.
type Credential struct {
	UID          string
	Email        string
	DisplayName  string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Provider is the remote identity service the auth object delegates to.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*Credential, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Credential, error)
	UpdateProfile(ctx context.Context, idToken, displayName string) (*Credential, error)
	SendPasswordResetEmail(ctx context.Context, email string) error
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)
	Lookup(ctx context.Context, idToken string) (*Credential, error)
}

type FirebaseConfig struct {
	APIKey           string
	IdentityEndpoint string
	TokenEndpoint    string
	HTTPClient       *http.Client
}

// Firebase talks to the Identity Toolkit and Secure Token REST APIs.
// Pointing the endpoints at the auth emulator works the same way.
type Firebase struct {
	apiKey           string
	identityEndpoint string
	tokenEndpoint    string
	httpClient       *http.Client
	now              func() time.Time
}

func NewFirebase(cfg FirebaseConfig) *Firebase {
	identityEndpoint := cfg.IdentityEndpoint
	if identityEndpoint == "" {
		identityEndpoint = DefaultIdentityEndpoint
	}
	tokenEndpoint := cfg.TokenEndpoint
	if tokenEndpoint == "" {
		tokenEndpoint = DefaultTokenEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	return &Firebase{
		apiKey:           cfg.APIKey,
		identityEndpoint: strings.TrimSuffix(identityEndpoint, "/"),
		tokenEndpoint:    strings.TrimSuffix(tokenEndpoint, "/"),
		httpClient:       httpClient,
		now:              time.Now,
	}
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type tokenResponse struct {
	ExpiresIn    string `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	UserID       string `json:"user_id"`
	ProjectID    string `json:"project_id"`
}

type lookupResponse struct {
	Users []struct {
		LocalID     string `json:"localId"`
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	} `json:"users"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *Firebase) SignUp(ctx context.Context, email, password string) (*Credential, error) {
	var resp accountResponse
	err := f.postJSON(ctx, f.accountsURL("signUp"), passwordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	return f.credentialFrom(resp), nil
}

func (f *Firebase) SignInWithPassword(ctx context.Context, email, password string) (*Credential, error) {
	var resp accountResponse
	err := f.postJSON(ctx, f.accountsURL("signInWithPassword"), passwordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return f.credentialFrom(resp), nil
}

// UpdateProfile sets the display name of the account behind idToken. The
// returned credential carries no tokens unless the provider rotated them.
func (f *Firebase) UpdateProfile(ctx context.Context, idToken, displayName string) (*Credential, error) {
	var resp accountResponse
	err := f.postJSON(ctx, f.accountsURL("update"), map[string]any{
		"idToken":           idToken,
		"displayName":       displayName,
		"returnSecureToken": false,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return f.credentialFrom(resp), nil
}

func (f *Firebase) SendPasswordResetEmail(ctx context.Context, email string) error {
	var resp struct {
		Email string `json:"email"`
	}
	err := f.postJSON(ctx, f.accountsURL("sendOobCode"), map[string]string{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, &resp)
	if err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	return nil
}

func (f *Firebase) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.tokenEndpoint+"/token?key="+url.QueryEscape(f.apiKey), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp tokenResponse
	if err := f.do(req, &resp); err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	return &Credential{
		UID:          resp.UserID,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    f.expiry(resp.ExpiresIn),
	}, nil
}

func (f *Firebase) Lookup(ctx context.Context, idToken string) (*Credential, error) {
	var resp lookupResponse
	if err := f.postJSON(ctx, f.accountsURL("lookup"), map[string]string{"idToken": idToken}, &resp); err != nil {
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if len(resp.Users) == 0 {
		return nil, &APIError{Status: http.StatusBadRequest, Code: "USER_NOT_FOUND"}
	}

	u := resp.Users[0]
	return &Credential{
		UID:         u.LocalID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
	}, nil
}

func (f *Firebase) accountsURL(method string) string {
	return f.identityEndpoint + "/accounts:" + method + "?key=" + url.QueryEscape(f.apiKey)
}

func (f *Firebase) credentialFrom(resp accountResponse) *Credential {
	c := &Credential{
		UID:          resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
	}
	if resp.IDToken != "" {
		c.ExpiresAt = f.expiry(resp.ExpiresIn)
	}
	return c
}

// expiry converts the provider's "expiresIn" seconds string; one hour is
// the documented lifetime when the field is missing.
func (f *Firebase) expiry(expiresIn string) time.Time {
	seconds, err := strconv.Atoi(expiresIn)
	if err != nil || seconds <= 0 {
		seconds = 3600
	}
	return f.now().Add(time.Duration(seconds) * time.Second)
}

func (f *Firebase) postJSON(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return f.do(req, out)
}

func (f *Firebase) do(req *http.Request, out any) error {
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Error.Message == "" {
		return &APIError{Status: status, Code: http.StatusText(status)}
	}

	code := er.Error.Message
	if idx := strings.Index(code, " : "); idx != -1 {
		code = code[:idx]
	}
	return &APIError{Status: status, Code: code, Message: er.Error.Message}
}
