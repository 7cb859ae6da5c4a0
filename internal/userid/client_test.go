package userid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loganlanou/authgate/internal/identity"
	"github.com/loganlanou/authgate/internal/identity/identitytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource is a TokenSource with fixed answers.
type stubSource struct {
	principal *identity.Principal
	token     string
	err       error
	calls     int
}

func (s *stubSource) CurrentPrincipal() *identity.Principal { return s.principal }

func (s *stubSource) IDToken(context.Context) (string, error) {
	s.calls++
	return s.token, s.err
}

type countingServer struct {
	*httptest.Server
	hits       atomic.Int32
	lastAuth   atomic.Value
	lastPath   atomic.Value
	lastMethod atomic.Value
}

func newBackend(t *testing.T, status int, body any) *countingServer {
	t.Helper()

	s := &countingServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.lastAuth.Store(r.Header.Get("Authorization"))
		s.lastPath.Store(r.URL.Path)
		s.lastMethod.Store(r.Method)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

type recordedLookup struct {
	results []string
}

func (r *recordedLookup) RecordUserIDLookup(result string, _ time.Duration) {
	r.results = append(r.results, result)
}

func TestResolveUserID_NoSessionMakesNoCalls(t *testing.T) {
	backend := newBackend(t, http.StatusOK, map[string]string{"id": "x"})
	src := &stubSource{}

	_, err := NewClient(backend.URL).ResolveUserID(context.Background(), src)

	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, int32(0), backend.hits.Load())
	assert.Equal(t, 0, src.calls, "no token fetch without a session")
}

func TestResolveUserID_NilSource(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:0").ResolveUserID(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolveUserID_SendsBearerToken(t *testing.T) {
	backend := newBackend(t, http.StatusOK, map[string]string{"id": "01HZX", "principal": "uid-1"})

	provider := identitytest.New()
	provider.AddAccount("ada@example.com", "secret1", "")
	auth := identity.NewAuth(provider)
	_, err := auth.SignIn(context.Background(), "ada@example.com", "secret1")
	require.NoError(t, err)

	token, err := auth.IDToken(context.Background())
	require.NoError(t, err)

	id, err := NewClient(backend.URL+"/api/").ResolveUserID(context.Background(), auth)
	require.NoError(t, err)

	assert.Equal(t, "01HZX", id.ID)
	assert.Equal(t, "uid-1", id.Principal)
	assert.Equal(t, int32(1), backend.hits.Load())
	assert.Equal(t, http.MethodGet, backend.lastMethod.Load())
	assert.Equal(t, "/api/userid", backend.lastPath.Load())
	assert.Equal(t, "Bearer "+token, backend.lastAuth.Load())
}

func TestResolveUserID_TokenFetchFailed(t *testing.T) {
	backend := newBackend(t, http.StatusOK, map[string]string{"id": "x"})
	src := &stubSource{principal: &identity.Principal{UID: "u1"}, err: errors.New("provider down")}

	_, err := NewClient(backend.URL).ResolveUserID(context.Background(), src)

	assert.ErrorIs(t, err, ErrTokenFetchFailed)
	assert.NotErrorIs(t, err, ErrRemoteCallFailed)
	assert.Equal(t, int32(0), backend.hits.Load())
}

func TestResolveUserID_SessionEndedDuringFetch(t *testing.T) {
	src := &stubSource{principal: &identity.Principal{UID: "u1"}, err: identity.ErrNoCurrentUser}

	_, err := NewClient("http://127.0.0.1:0").ResolveUserID(context.Background(), src)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolveUserID_Unauthorized(t *testing.T) {
	backend := newBackend(t, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
	src := &stubSource{principal: &identity.Principal{UID: "u1"}, token: "tok"}

	id, err := NewClient(backend.URL).ResolveUserID(context.Background(), src)

	assert.Nil(t, id)
	assert.ErrorIs(t, err, ErrRemoteCallFailed)
	assert.NotErrorIs(t, err, ErrUnauthenticated)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
	assert.Equal(t, int32(1), backend.hits.Load(), "no retries")
}

func TestResolveUserID_MissingID(t *testing.T) {
	backend := newBackend(t, http.StatusOK, map[string]string{"principal": "u1"})
	src := &stubSource{principal: &identity.Principal{UID: "u1"}, token: "tok"}

	_, err := NewClient(backend.URL).ResolveUserID(context.Background(), src)
	assert.ErrorIs(t, err, ErrRemoteCallFailed)
}

func TestResolveUserID_TransportFailure(t *testing.T) {
	backend := newBackend(t, http.StatusOK, nil)
	url := backend.URL
	backend.Close()

	src := &stubSource{principal: &identity.Principal{UID: "u1"}, token: "tok"}
	_, err := NewClient(url).ResolveUserID(context.Background(), src)
	assert.ErrorIs(t, err, ErrRemoteCallFailed)
}

func TestResolveUserID_RecordsOutcome(t *testing.T) {
	backend := newBackend(t, http.StatusOK, map[string]string{"id": "x"})
	rec := &recordedLookup{}
	client := NewClient(backend.URL, WithRecorder(rec), WithHTTPClient(&http.Client{Timeout: time.Second}))

	_, _ = client.ResolveUserID(context.Background(), &stubSource{})
	_, _ = client.ResolveUserID(context.Background(), &stubSource{principal: &identity.Principal{UID: "u1"}, err: errors.New("boom")})
	_, _ = client.ResolveUserID(context.Background(), &stubSource{principal: &identity.Principal{UID: "u1"}, token: "tok"})

	assert.Equal(t, []string{"unauthenticated", "token_fetch_failed", "ok"}, rec.results)
}
