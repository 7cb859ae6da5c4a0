// Package userid resolves the signed-in principal into the backend's
// internal user identifier.
package userid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loganlanou/authgate/internal/identity"
)

var (
	// ErrUnauthenticated means there was no session to resolve.
	ErrUnauthenticated = errors.New("no authenticated user")
	// ErrTokenFetchFailed means the provider could not produce an ID token.
	ErrTokenFetchFailed = errors.New("token fetch failed")
	// ErrRemoteCallFailed means the backend call failed or answered badly.
	ErrRemoteCallFailed = errors.New("remote call failed")
)

// RemoteError describes a non-2xx answer from the backend.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteCallFailed
}

// TokenSource is the part of the visitor's session the lookup needs.
type TokenSource interface {
	CurrentPrincipal() *identity.Principal
	IDToken(ctx context.Context) (string, error)
}

// Identity is the backend's answer.
type Identity struct {
	ID        string `json:"id"`
	Principal string `json:"principal,omitempty"`
}

// Recorder observes lookup outcomes.
type Recorder interface {
	RecordUserIDLookup(result string, duration time.Duration)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	recorder   Recorder
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// NewClient builds a client for baseURL. With no options the default
// transport is used and no client-side timeout applies; the caller's context
// bounds the call.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveUserID fetches a token for the current principal and exchanges it
// at GET {baseURL}/userid. It makes no network call when src has no session
// and never retries.
func (c *Client) ResolveUserID(ctx context.Context, src TokenSource) (*Identity, error) {
	start := time.Now()
	id, err := c.resolve(ctx, src)
	if c.recorder != nil {
		c.recorder.RecordUserIDLookup(resultLabel(err), time.Since(start))
	}
	return id, err
}

func (c *Client) resolve(ctx context.Context, src TokenSource) (*Identity, error) {
	if src == nil || src.CurrentPrincipal() == nil {
		return nil, ErrUnauthenticated
	}

	token, err := src.IDToken(ctx)
	if err != nil {
		if errors.Is(err, identity.ErrNoCurrentUser) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenFetchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/userid", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrRemoteCallFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteCallFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrRemoteCallFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("user id lookup rejected", "status", resp.StatusCode)
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out Identity
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrRemoteCallFailed, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: response has no id", ErrRemoteCallFailed)
	}

	return &out, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrTokenFetchFailed):
		return "token_fetch_failed"
	default:
		return "remote_call_failed"
	}
}
