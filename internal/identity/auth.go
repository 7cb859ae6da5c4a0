package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshSkew is how close to expiry an ID token may get before IDToken
// trades the refresh token for a new one.
const refreshSkew = time.Minute

const refreshTimeout = 15 * time.Second

// Principal is the signed-in identity delivered to subscribers.
type Principal struct {
	UID         string
	Email       string
	DisplayName string
}

// Listener receives the current principal, or nil when there is no session.
type Listener func(*Principal)

// Auth owns one visitor's session. It plays the part of the provider SDK's
// client-side auth object: it holds the current credential, refreshes the ID
// token on demand and notifies subscribers whenever the session appears or
// goes away.
//
// Listeners are called outside the state lock but one at a time, and must
// not call back into mutating methods of the same Auth.
type Auth struct {
	provider Provider
	now      func() time.Time

	refreshes singleflight.Group

	notifyMu sync.Mutex

	mu        sync.Mutex
	resolved  bool
	current   *Credential
	listeners map[uint64]Listener
	nextID    uint64
}

func NewAuth(provider Provider) *Auth {
	return &Auth{
		provider:  provider,
		now:       time.Now,
		listeners: make(map[uint64]Listener),
	}
}

// OnAuthStateChanged registers fn for session changes. When the initial
// state is already known fn is called straight away with it. The returned
// function removes the listener; calling it more than once is a no-op.
func (a *Auth) OnAuthStateChanged(fn Listener) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	resolved := a.resolved
	a.mu.Unlock()

	if resolved {
		a.notifyMu.Lock()
		fn(a.CurrentPrincipal())
		a.notifyMu.Unlock()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.listeners, id)
			a.mu.Unlock()
		})
	}
}

// Resolved reports whether the initial session state is known.
func (a *Auth) Resolved() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolved
}

func (a *Auth) CurrentPrincipal() *Principal {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil
	}
	return &Principal{
		UID:         a.current.UID,
		Email:       a.current.Email,
		DisplayName: a.current.DisplayName,
	}
}

// RefreshToken returns the long-lived token worth persisting so the session
// can be restored later, or "" when signed out.
func (a *Auth) RefreshToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return ""
	}
	return a.current.RefreshToken
}

// Resolve marks the initial state as known with no session. It does nothing
// once the state has been resolved.
func (a *Auth) Resolve() {
	a.mu.Lock()
	if a.resolved {
		a.mu.Unlock()
		return
	}
	a.resolved = true
	a.mu.Unlock()

	a.notify()
}

// Restore resolves the initial state from a persisted refresh token. Any
// failure resolves to signed out; only a rejected token wraps
// ErrSessionExpired, so callers can tell an ended session from a provider
// outage.
func (a *Auth) Restore(ctx context.Context, refreshToken string) error {
	cred, err := a.provider.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			slog.Info("persisted session expired", "error", err)
		} else {
			slog.Warn("failed to restore session", "error", err)
		}
		a.set(nil)
		return err
	}

	if account, err := a.provider.Lookup(ctx, cred.IDToken); err == nil {
		cred.Email = account.Email
		cred.DisplayName = account.DisplayName
	} else {
		slog.Warn("failed to load account details for restored session", "uid", cred.UID, "error", err)
	}

	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}

	a.set(cred)
	return nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*Principal, error) {
	cred, err := a.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.set(cred)
	return a.CurrentPrincipal(), nil
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (*Principal, error) {
	cred, err := a.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.set(cred)
	return a.CurrentPrincipal(), nil
}

// UpdateProfile changes the display name of the signed-in account. It does
// not notify subscribers; the session itself is unchanged.
func (a *Auth) UpdateProfile(ctx context.Context, displayName string) error {
	token, err := a.IDToken(ctx)
	if err != nil {
		return err
	}

	updated, err := a.provider.UpdateProfile(ctx, token, displayName)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return ErrNoCurrentUser
	}
	a.current.DisplayName = displayName
	if updated != nil && updated.IDToken != "" {
		a.current.IDToken = updated.IDToken
		a.current.ExpiresAt = updated.ExpiresAt
		if updated.RefreshToken != "" {
			a.current.RefreshToken = updated.RefreshToken
		}
	}
	return nil
}

func (a *Auth) SignOut() {
	a.set(nil)
}

func (a *Auth) SendPasswordReset(ctx context.Context, email string) error {
	return a.provider.SendPasswordResetEmail(ctx, email)
}

// IDToken returns a token for the signed-in principal, refreshing it through
// the provider when it is about to expire. Concurrent callers share a single
// refresh. When the provider rejects the refresh token the session ends.
func (a *Auth) IDToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	cur := a.current
	if cur == nil {
		a.mu.Unlock()
		return "", ErrNoCurrentUser
	}
	if cur.IDToken != "" && a.now().Add(refreshSkew).Before(cur.ExpiresAt) {
		token := cur.IDToken
		a.mu.Unlock()
		return token, nil
	}
	refreshToken := cur.RefreshToken
	a.mu.Unlock()

	// the flight is shared, so it must outlive any one caller's request
	flight := a.refreshes.DoChan(refreshToken, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return a.provider.Refresh(rctx, refreshToken)
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if res.Err != nil {
		if errors.Is(res.Err, ErrSessionExpired) {
			a.endIf(cur)
		}
		return "", fmt.Errorf("refresh id token: %w", res.Err)
	}

	fresh := res.Val.(*Credential)
	a.mu.Lock()
	if a.current == cur {
		cur.IDToken = fresh.IDToken
		cur.ExpiresAt = fresh.ExpiresAt
		if fresh.RefreshToken != "" {
			cur.RefreshToken = fresh.RefreshToken
		}
	}
	a.mu.Unlock()

	return fresh.IDToken, nil
}

// endIf signs out only if cur is still the active credential.
func (a *Auth) endIf(cur *Credential) {
	a.mu.Lock()
	if a.current != cur {
		a.mu.Unlock()
		return
	}
	a.current = nil
	a.resolved = true
	a.mu.Unlock()

	a.notify()
}

func (a *Auth) set(cred *Credential) {
	a.mu.Lock()
	a.current = cred
	a.resolved = true
	a.mu.Unlock()

	a.notify()
}

// notify delivers the state as it is at delivery time, so the last call any
// listener sees always matches the latest change.
func (a *Auth) notify() {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	a.mu.Lock()
	listeners := make([]Listener, 0, len(a.listeners))
	for _, fn := range a.listeners {
		listeners = append(listeners, fn)
	}
	a.mu.Unlock()

	p := a.CurrentPrincipal()
	for _, fn := range listeners {
		fn(p)
	}
}
