//go:build e2e

package devserver_test

import (
	"net/http"
	"sync"
	"testing"

	"github.com/aussiebroadwan/jwtclient/internal/devserver"
	"github.com/aussiebroadwan/jwtclient/pkg/authclient"
	"github.com/stretchr/testify/require"
)

// TestLoginRefreshLogout walks a session through its whole life against a
// real server process. A 10s access TTL sits inside the 30s skew, so every
// token use goes through /refresh.
func TestLoginRefreshLogout(t *testing.T) {
	baseURL := startDevServer(t, map[string]string{
		"DEVSERVER_ACCESS_TTL":     "10s",
		"DEVSERVER_ROTATE_REFRESH": "true",
	})
	ctx := t.Context()

	session, transport := newSession(t, baseURL)
	client := authclient.NewClient(session, transport)

	require.NoError(t, session.Login(ctx, testUsername, testPassword))
	oldRefresh := session.RefreshToken()

	var me devserver.MeResponse
	require.NoError(t, client.Get(ctx, "/me", &me))
	require.Equal(t, testUsername, me.Username)
	require.NotEqual(t, oldRefresh, session.RefreshToken(), "refresh token should be rotated")

	// The rotated-out token is dead server side
	_, err := authclient.Send[authclient.TokenResponse](ctx, transport, authclient.Request{
		Method: http.MethodPost,
		Path:   "/refresh",
		Body:   authclient.RefreshRequest{Token: oldRefresh},
	})
	require.ErrorIs(t, err, authclient.ErrUnauthorized)

	current := session.RefreshToken()
	require.NoError(t, session.Logout(ctx))
	require.Equal(t, authclient.Unauthenticated, session.Status().State)

	_, err = authclient.Send[authclient.TokenResponse](ctx, transport, authclient.Request{
		Method: http.MethodPost,
		Path:   "/refresh",
		Body:   authclient.RefreshRequest{Token: current},
	})
	require.ErrorIs(t, err, authclient.ErrUnauthorized)
}

func TestConcurrentCallersShareSession(t *testing.T) {
	baseURL := startDevServer(t, map[string]string{"DEVSERVER_ACCESS_TTL": "10s"})
	ctx := t.Context()

	session, transport := newSession(t, baseURL)
	client := authclient.NewClient(session, transport)
	require.NoError(t, session.Login(ctx, testUsername, testPassword))

	var wg sync.WaitGroup
	errs := make([]error, len(devserver.Widgets))
	for i, w := range devserver.Widgets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var resp devserver.WidgetResponse
			errs[i] = client.Get(ctx, "/dashboard/"+w, &resp)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, devserver.Widgets[i])
	}
	require.Equal(t, authclient.Authenticated, session.Status().State)
}

func TestBadCredentials(t *testing.T) {
	baseURL := startDevServer(t, nil)

	session, _ := newSession(t, baseURL)
	err := session.Login(t.Context(), testUsername, "wrong")
	require.ErrorIs(t, err, authclient.ErrUnauthorized)
	require.NotEmpty(t, session.Status().Message)
}

func TestLoginRateLimited(t *testing.T) {
	baseURL := startDevServer(t, map[string]string{"DEVSERVER_AUTH_RATE_LIMIT": "3"})

	session, _ := newSession(t, baseURL)
	for range 3 {
		err := session.Login(t.Context(), testUsername, "wrong")
		require.ErrorIs(t, err, authclient.ErrUnauthorized)
	}

	err := session.Login(t.Context(), testUsername, "wrong")
	var statusErr *authclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	require.Equal(t, "rate_limit_exceeded", statusErr.Code)
}

func TestHealth(t *testing.T) {
	baseURL := startDevServer(t, nil)
	_, transport := newSession(t, baseURL)

	health, err := authclient.Send[devserver.HealthResponse](t.Context(), transport, authclient.Request{
		Method: http.MethodGet,
		Path:   "/livez",
	})
	require.NoError(t, err)
	require.Equal(t, "ok", health.Status)
}
