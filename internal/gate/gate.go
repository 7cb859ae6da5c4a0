// Package gate decides whether guarded routes may be shown to a visitor.
//
// A Gate subscribes to a visitor's session notifications and tracks one of
// three states. It starts Pending and only leaves it when the first
// notification arrives; after that it flips between Authenticated and
// Unauthenticated and never returns to Pending.
package gate

import (
	"context"
	"sync"

	"github.com/loganlanou/authgate/internal/identity"
)

type State int

const (
	Pending State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Source is anything that publishes session changes, usually *identity.Auth.
type Source interface {
	OnAuthStateChanged(fn identity.Listener) (unsubscribe func())
}

type Option func(*Gate)

// WithTransition registers fn to run after every state change. It is not
// called for notifications that leave the state as it was.
func WithTransition(fn func(from, to State)) Option {
	return func(g *Gate) {
		g.onTransition = fn
	}
}

type Gate struct {
	mu           sync.Mutex
	state        State
	principal    *identity.Principal
	closed       bool
	decided      chan struct{}
	onTransition func(from, to State)

	unsubscribe func()
	closeOnce   sync.Once
}

// New subscribes to src and returns a gate in the Pending state, unless src
// already knows its state and reports it during subscription.
func New(src Source, opts ...Option) *Gate {
	g := &Gate{decided: make(chan struct{})}
	for _, opt := range opts {
		opt(g)
	}

	g.unsubscribe = src.OnAuthStateChanged(g.handle)
	return g
}

func (g *Gate) handle(p *identity.Principal) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}

	from := g.state
	to := Unauthenticated
	if p != nil {
		to = Authenticated
	}
	g.state = to
	g.principal = p
	if from == Pending {
		close(g.decided)
	}
	fn := g.onTransition
	g.mu.Unlock()

	if fn != nil && from != to {
		fn(from, to)
	}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Principal is the identity from the latest notification, nil unless the
// gate is Authenticated.
func (g *Gate) Principal() *identity.Principal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.principal
}

// Decided is closed once the first notification has been received.
func (g *Gate) Decided() <-chan struct{} {
	return g.decided
}

// Await blocks until the first notification or until ctx is done, and
// returns the state at that point.
func (g *Gate) Await(ctx context.Context) State {
	select {
	case <-g.decided:
	case <-ctx.Done():
	}
	return g.State()
}

// Close unsubscribes from the source. Later notifications are ignored.
// Close may be called any number of times.
func (g *Gate) Close() {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		g.closed = true
		g.mu.Unlock()

		if g.unsubscribe != nil {
			g.unsubscribe()
		}
	})
}
