// Package identitytest provides an in-memory identity.Provider for tests.
package identitytest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/loganlanou/authgate/internal/identity"
)

type Account struct {
	UID         string
	Email       string
	Password    string
	DisplayName string
}

// Provider is a fake identity provider. The zero value is not usable; call
// New.
type Provider struct {
	// TokenTTL is the lifetime of issued ID tokens.
	TokenTTL time.Duration
	// Now is the clock used for token expiry.
	Now func() time.Time
	// RefreshErr, when set, is returned by every Refresh call.
	RefreshErr error
	// ResetErr, when set, is returned by SendPasswordResetEmail.
	ResetErr error
	// RefreshGate, when set, makes Refresh wait until it is closed.
	RefreshGate chan struct{}

	mu       sync.Mutex
	accounts map[string]*Account
	refresh  map[string]string
	idTokens map[string]string
	resets   []string
	calls    map[string]int
	seq      int
}

func New() *Provider {
	return &Provider{
		TokenTTL: time.Hour,
		Now:      time.Now,
		accounts: make(map[string]*Account),
		refresh:  make(map[string]string),
		idTokens: make(map[string]string),
		calls:    make(map[string]int),
	}
}

// AddAccount registers an account and returns it.
func (p *Provider) AddAccount(email, password, displayName string) *Account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addLocked(email, password, displayName)
}

// IssueRefreshToken returns a refresh token for an existing account, as if
// it had been persisted by an earlier sign-in.
func (p *Provider) IssueRefreshToken(email string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	token := fmt.Sprintf("refresh-%d", p.seq)
	p.refresh[token] = email
	return token
}

// Resets lists the addresses that were sent a password reset email.
func (p *Provider) Resets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.resets...)
}

// Calls reports how many times the named method was invoked.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *Provider) Account(email string) (*Account, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.accounts[email]
	return a, ok
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (*identity.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["SignUp"]++

	if _, exists := p.accounts[email]; exists {
		return nil, apiError("EMAIL_EXISTS")
	}
	if len(password) < 6 {
		return nil, apiError("WEAK_PASSWORD")
	}

	acct := p.addLocked(email, password, "")
	return p.credentialLocked(acct), nil
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["SignInWithPassword"]++

	acct, ok := p.accounts[email]
	if !ok || acct.Password != password {
		return nil, apiError("INVALID_LOGIN_CREDENTIALS")
	}
	return p.credentialLocked(acct), nil
}

func (p *Provider) UpdateProfile(ctx context.Context, idToken, displayName string) (*identity.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["UpdateProfile"]++

	email, ok := p.idTokens[idToken]
	if !ok {
		return nil, apiError("INVALID_ID_TOKEN")
	}
	acct := p.accounts[email]
	acct.DisplayName = displayName
	return &identity.Credential{UID: acct.UID, Email: acct.Email, DisplayName: displayName}, nil
}

func (p *Provider) SendPasswordResetEmail(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["SendPasswordResetEmail"]++

	if p.ResetErr != nil {
		return p.ResetErr
	}
	if _, ok := p.accounts[email]; !ok {
		return apiError("EMAIL_NOT_FOUND")
	}
	p.resets = append(p.resets, email)
	return nil
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*identity.Credential, error) {
	if p.RefreshGate != nil {
		select {
		case <-p.RefreshGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["Refresh"]++

	if p.RefreshErr != nil {
		return nil, p.RefreshErr
	}
	email, ok := p.refresh[refreshToken]
	if !ok {
		return nil, apiError("INVALID_REFRESH_TOKEN")
	}

	cred := p.credentialLocked(p.accounts[email])
	// the secure token endpoint only returns ids and tokens
	cred.Email = ""
	cred.DisplayName = ""
	cred.RefreshToken = refreshToken
	return cred, nil
}

func (p *Provider) Lookup(ctx context.Context, idToken string) (*identity.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["Lookup"]++

	email, ok := p.idTokens[idToken]
	if !ok {
		return nil, apiError("INVALID_ID_TOKEN")
	}
	acct := p.accounts[email]
	return &identity.Credential{UID: acct.UID, Email: acct.Email, DisplayName: acct.DisplayName}, nil
}

func (p *Provider) addLocked(email, password, displayName string) *Account {
	p.seq++
	acct := &Account{
		UID:         fmt.Sprintf("uid-%d", p.seq),
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	}
	p.accounts[email] = acct
	return acct
}

func (p *Provider) credentialLocked(acct *Account) *identity.Credential {
	p.seq++
	idToken := fmt.Sprintf("id-%s-%d", acct.UID, p.seq)
	refreshToken := fmt.Sprintf("refresh-%d", p.seq)
	p.idTokens[idToken] = acct.Email
	p.refresh[refreshToken] = acct.Email

	return &identity.Credential{
		UID:          acct.UID,
		Email:        acct.Email,
		DisplayName:  acct.DisplayName,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresAt:    p.Now().Add(p.TokenTTL),
	}
}

func apiError(code string) error {
	return &identity.APIError{Status: http.StatusBadRequest, Code: code, Message: code}
}
