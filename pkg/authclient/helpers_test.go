package authclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/jwtclient/pkg/authclient"
	"github.com/aussiebroadwan/jwtclient/pkg/slogx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps the real retry count but shrinks the waits.
var fastRetry = authclient.RetryPolicy{
	MaxRetries:     3,
	InitialBackoff: time.Millisecond,
	Multiplier:     2,
}

// tokenExpiring returns an unsigned JWT. label ends up in "sub" so tokens
// with the same expiry are still distinguishable.
func tokenExpiring(t *testing.T, label string, exp time.Time) string {
	t.Helper()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": label,
		"exp": exp.Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return tok
}

func freshToken(t *testing.T, label string) string {
	return tokenExpiring(t, label, time.Now().Add(time.Hour))
}

func staleToken(t *testing.T, label string) string {
	return tokenExpiring(t, label, time.Now().Add(-time.Hour))
}

// fakeAuth is a programmable server that counts hits per path.
type fakeAuth struct {
	srv *httptest.Server

	mu       sync.Mutex
	hits     map[string]int
	handlers map[string]http.HandlerFunc
}

func newFakeAuth(t *testing.T) *fakeAuth {
	t.Helper()

	f := &fakeAuth{
		hits:     make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
	}
	f.srv = httptest.NewServer(f)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	h := f.handlers[r.URL.Path]
	f.mu.Unlock()

	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (f *fakeAuth) handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

func (f *fakeAuth) Hits(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeAuth) transport(opts ...authclient.TransportOption) *authclient.Transport {
	base := []authclient.TransportOption{
		authclient.WithRetryPolicy(fastRetry),
		authclient.WithLogger(slogx.Discard()),
	}
	return authclient.NewTransport(f.srv.URL, append(base, opts...)...)
}

func (f *fakeAuth) session(t *testing.T, store authclient.TokenStore, opts ...authclient.SessionOption) *authclient.Session {
	t.Helper()

	opts = append([]authclient.SessionOption{authclient.WithSessionLogger(slogx.Discard())}, opts...)
	s, err := authclient.NewSession(context.Background(), f.transport(), store, opts...)
	require.NoError(t, err)
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

func respondTokens(access, refresh string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authclient.TokenResponse{AccessToken: access, RefreshToken: refresh})
	}
}

func storedPair(t *testing.T, store authclient.TokenStore) authclient.TokenPair {
	t.Helper()
	pair, err := store.Load(context.Background())
	require.NoError(t, err)
	return pair
}

func seededStore(t *testing.T, pair authclient.TokenPair) *authclient.MemoryTokenStore {
	t.Helper()
	store := authclient.NewMemoryTokenStore()
	require.NoError(t, store.Save(context.Background(), pair))
	return store
}

// failingStore refuses every operation.
type failingStore struct{}

var errStoreDown = errors.New("store unavailable")

func (failingStore) Save(context.Context, authclient.TokenPair) error { return errStoreDown }
func (failingStore) Load(context.Context) (authclient.TokenPair, error) {
	return authclient.TokenPair{}, errStoreDown
}
func (failingStore) Clear(context.Context) error { return errStoreDown }
