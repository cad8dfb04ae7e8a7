package devserver_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/jwtclient/internal/devserver"
	"github.com/aussiebroadwan/jwtclient/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newTokenService(t *testing.T) (*devserver.TokenService, *jwtx.EdDSAVerifier) {
	t.Helper()

	signer, err := jwtx.GenerateSignerEdDSA("test")
	require.NoError(t, err)

	users, err := devserver.ParseUsers("alice:secret")
	require.NoError(t, err)

	return devserver.NewTokenService(signer, "test-issuer", users), jwtx.NewVerifierEdDSA(signer, "test-issuer")
}

func TestParseUsers(t *testing.T) {
	users, err := devserver.ParseUsers(" alice:secret , bob:hunter2,")
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "alice", users[0].Username)
	require.Equal(t, "bob", users[1].Username)
	require.NotEqual(t, "secret", users[0].PasswordHash)

	_, err = devserver.ParseUsers("alice")
	require.Error(t, err)

	_, err = devserver.ParseUsers("alice:")
	require.Error(t, err)
}

func TestTokenServiceLogin(t *testing.T) {
	ctx := context.Background()
	svc, verifier := newTokenService(t)

	pair, err := svc.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := verifier.Verify(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)
	require.NotEmpty(t, claims.SID)
	require.Equal(t, 1, svc.ActiveRefreshTokens())

	_, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, devserver.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "mallory", "secret")
	require.ErrorIs(t, err, devserver.ErrInvalidCredentials)
}

func TestTokenServiceRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps refresh token by default", func(t *testing.T) {
		svc, verifier := newTokenService(t)
		pair, err := svc.Login(ctx, "alice", "secret")
		require.NoError(t, err)

		next, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.Empty(t, next.RefreshToken)

		first, err := verifier.Verify(pair.AccessToken)
		require.NoError(t, err)
		second, err := verifier.Verify(next.AccessToken)
		require.NoError(t, err)
		require.Equal(t, first.SID, second.SID)

		// Still usable
		_, err = svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("rotation revokes the old token", func(t *testing.T) {
		svc, _ := newTokenService(t)
		svc.RotateRefresh = true

		pair, err := svc.Login(ctx, "alice", "secret")
		require.NoError(t, err)

		next, err := svc.Refresh(ctx, pair.RefreshToken)
		require.NoError(t, err)
		require.NotEmpty(t, next.RefreshToken)
		require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

		_, err = svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, devserver.ErrInvalidRefresh)

		_, err = svc.Refresh(ctx, next.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("unknown and expired tokens", func(t *testing.T) {
		svc, _ := newTokenService(t)

		_, err := svc.Refresh(ctx, "nope")
		require.ErrorIs(t, err, devserver.ErrInvalidRefresh)

		pair, err := svc.Login(ctx, "alice", "secret")
		require.NoError(t, err)

		svc.Now = func() time.Time { return time.Now().Add(devserver.DefaultRefreshTTL + time.Minute) }
		_, err = svc.Refresh(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, devserver.ErrInvalidRefresh)
		require.Zero(t, svc.ActiveRefreshTokens())
	})
}

func TestTokenServiceRevoke(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTokenService(t)

	pair, err := svc.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	svc.Revoke(ctx, pair.RefreshToken)
	svc.Revoke(ctx, pair.RefreshToken)
	svc.Revoke(ctx, "never-issued")

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, devserver.ErrInvalidRefresh)
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTokenService(t)
	svc.RefreshTTL = time.Minute

	_, err := svc.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	require.Zero(t, svc.DeleteExpired(time.Now()))
	require.Equal(t, 2, svc.DeleteExpired(time.Now().Add(2*time.Minute)))
	require.Zero(t, svc.ActiveRefreshTokens())
}

func TestHousekeepingSweeps(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTokenService(t)
	svc.RefreshTTL = time.Millisecond

	_, err := svc.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	hk := devserver.NewHousekeeping(svc, discard(), 5*time.Millisecond)
	hk.Start()
	defer hk.Stop()

	require.Eventually(t, func() bool {
		return svc.ActiveRefreshTokens() == 0
	}, time.Second, 5*time.Millisecond)
}
