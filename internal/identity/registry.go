package identity

import (
	"context"
	"errors"
	"sync"
	"time"
)

const restoreTimeout = 30 * time.Second

// Registry keeps one Auth per visitor key. Entries that have not been used
// for ttl are dropped by a background sweep.
type Registry struct {
	provider Provider
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry

	cleanup  *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

type registryEntry struct {
	auth     *Auth
	lastUsed time.Time
}

func NewRegistry(provider Provider, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	r := &Registry{
		provider: provider,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]*registryEntry),
		cleanup:  time.NewTicker(ttl),
		done:     make(chan struct{}),
	}

	go r.cleanupExpired()

	return r
}

// Attach returns the Auth for key, creating it when needed. A new Auth
// with a refresh token restores the session in the background and stays
// unresolved until that finishes. Without one it resolves to signed out and
// is only kept once the visitor signs in, so anonymous traffic does not
// grow the registry.
func (r *Registry) Attach(key, refreshToken string) *Auth {
	r.mu.Lock()
	if e, ok := r.entries[key]; ok {
		e.lastUsed = r.now()
		r.mu.Unlock()
		return e.auth
	}

	a := NewAuth(r.provider)
	if refreshToken != "" {
		r.entries[key] = &registryEntry{auth: a, lastUsed: r.now()}
	}
	r.mu.Unlock()

	if refreshToken == "" {
		a.OnAuthStateChanged(func(p *Principal) {
			if p != nil {
				r.keep(key, a)
			}
		})
		a.Resolve()
		return a
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
		defer cancel()
		err := a.Restore(ctx, refreshToken)
		if err != nil && !errors.Is(err, ErrSessionExpired) {
			// the token may still be good; retry on the next request
			r.forget(key, a)
		}
	}()

	return a
}

// Forget drops the Auth held for key.
func (r *Registry) Forget(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

func (r *Registry) keep(key string, a *Auth) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok && e.auth == a {
		e.lastUsed = r.now()
		return
	}
	r.entries[key] = &registryEntry{auth: a, lastUsed: r.now()}
}

// forget drops key only while it still maps to a.
func (r *Registry) forget(key string, a *Auth) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok && e.auth == a {
		delete(r.entries, key)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops the background sweep.
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		r.cleanup.Stop()
		close(r.done)
	})
}

func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	for key, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			delete(r.entries, key)
		}
	}
}

func (r *Registry) cleanupExpired() {
	for {
		select {
		case <-r.cleanup.C:
			r.sweep()
		case <-r.done:
			return
		}
	}
}
