package devserver_test

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/jwtclient/internal/devserver"
	"github.com/aussiebroadwan/jwtclient/pkg/httpx"
	"github.com/aussiebroadwan/jwtclient/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slogx.Discard() }

func newServer(t *testing.T, cfg devserver.Config) *devserver.Server {
	t.Helper()

	if cfg.Users == nil {
		users, err := devserver.ParseUsers("alice:secret")
		require.NoError(t, err)
		cfg.Users = users
	}

	srv, err := devserver.New(cfg, discard())
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, h http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:4000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) devserver.TokenPair {
	t.Helper()

	rec := do(t, h, http.MethodPost, "/login", "", map[string]string{"username": "alice", "password": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var pair devserver.TokenPair
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return pair
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body httpx.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestNewRequiresUsers(t *testing.T) {
	_, err := devserver.New(devserver.Config{}, discard())
	require.Error(t, err)
}

func TestLoginEndpoint(t *testing.T) {
	srv := newServer(t, devserver.Config{})

	login(t, srv)

	rec := do(t, srv, http.MethodPost, "/login", "", map[string]string{"username": "alice", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid_grant", errorCode(t, rec))

	rec = do(t, srv, http.MethodPost, "/login", "", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", errorCode(t, rec))

	rec = do(t, srv, http.MethodPost, "/login", "", map[string]string{"username": "alice", "password": "secret", "extra": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	srv := newServer(t, devserver.Config{RotateRefresh: true})
	pair := login(t, srv)

	rec := do(t, srv, http.MethodPost, "/refresh", "", map[string]string{"token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	var next devserver.TokenPair
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&next))
	require.NotEmpty(t, next.AccessToken)
	require.NotEmpty(t, next.RefreshToken)

	rec = do(t, srv, http.MethodPost, "/refresh", "", map[string]string{"token": pair.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodPost, "/refresh", "", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	srv := newServer(t, devserver.Config{})
	pair := login(t, srv)

	rec := do(t, srv, http.MethodPost, "/logout", "", map[string]string{"token": pair.RefreshToken})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Zero(t, rec.Body.Len())

	// Unknown tokens look the same
	rec = do(t, srv, http.MethodPost, "/logout", "", map[string]string{"token": pair.RefreshToken})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodPost, "/refresh", "", map[string]string{"token": pair.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodPost, "/logout", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedEndpoints(t *testing.T) {
	srv := newServer(t, devserver.Config{})
	pair := login(t, srv)

	t.Run("me", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/me", pair.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var me devserver.MeResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
		require.Equal(t, "alice", me.Username)
		require.NotEmpty(t, me.SessionID)
		require.True(t, me.ExpiresAt.After(time.Now()))
	})

	t.Run("widgets", func(t *testing.T) {
		for _, w := range devserver.Widgets {
			rec := do(t, srv, http.MethodGet, "/dashboard/"+w, pair.AccessToken, nil)
			require.Equal(t, http.StatusOK, rec.Code, w)

			var body devserver.WidgetResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.Equal(t, w, body.Widget)
		}

		rec := do(t, srv, http.MethodGet, "/dashboard/weather", pair.AccessToken, nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing or bad token", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")

		rec = do(t, srv, http.MethodGet, "/me", "garbage", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		srv.Verifier.Now = func() time.Time { return time.Now().Add(time.Hour) }
		defer func() { srv.Verifier.Now = time.Now }()

		rec := do(t, srv, http.MethodGet, "/me", pair.AccessToken, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestFaultInjection(t *testing.T) {
	srv := newServer(t, devserver.Config{})
	pair := login(t, srv)

	srv.Faults.FailNext("/refresh", http.StatusServiceUnavailable, 2)

	for range 2 {
		rec := do(t, srv, http.MethodPost, "/refresh", "", map[string]string{"token": pair.RefreshToken})
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "injected_fault", errorCode(t, rec))
	}

	rec := do(t, srv, http.MethodPost, "/refresh", "", map[string]string{"token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, 3, srv.Faults.Hits("/refresh"))
	require.Equal(t, 1, srv.Faults.Hits("/login"))

	srv.Faults.Reset()
	require.Zero(t, srv.Faults.Hits("/refresh"))
}

func TestAuthRateLimit(t *testing.T) {
	srv := newServer(t, devserver.Config{AuthLimit: httpx.RateLimitConfig{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		Burst:             2,
	}})

	creds := map[string]string{"username": "alice", "password": "nope"}
	for range 2 {
		require.Equal(t, http.StatusUnauthorized, do(t, srv, http.MethodPost, "/login", "", creds).Code)
	}
	require.Equal(t, http.StatusTooManyRequests, do(t, srv, http.MethodPost, "/login", "", creds).Code)

	// Health is never limited
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/livez", "", nil).Code)
}

func TestLivez(t *testing.T) {
	srv := newServer(t, devserver.Config{Version: "v1.2.3"})

	rec := do(t, srv, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body devserver.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "v1.2.3", body.Version)
}

func TestSigningKeySurvivesRestart(t *testing.T) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	first := newServer(t, devserver.Config{SigningKeyPEM: keyPEM})
	pair := login(t, first)

	second := newServer(t, devserver.Config{SigningKeyPEM: keyPEM})
	rec := do(t, second, http.MethodGet, "/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// An ephemeral key on a third instance rejects it
	third := newServer(t, devserver.Config{})
	rec = do(t, third, http.MethodGet, "/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	_, err = devserver.New(devserver.Config{Users: []devserver.User{{Username: "x"}}, SigningKeyPEM: []byte("nope")}, discard())
	require.Error(t, err)
}
