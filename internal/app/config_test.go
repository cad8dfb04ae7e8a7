package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadClientConfigDefaults(t *testing.T) {
	for _, k := range []string{"JWTCLIENT_BASE_URL", "JWTCLIENT_EXPIRY_SKEW", "KEYCHAIN_DRIVER", "JWTCLIENT_RATE_LIMIT_RPS"} {
		t.Setenv(k, "")
	}

	cfg := LoadClientConfig()
	require.Equal(t, "http://localhost:8080", cfg.BaseURL)
	require.Equal(t, 30*time.Second, cfg.ExpirySkew)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, DriverSQLite, cfg.KeychainDriver)
	require.Zero(t, cfg.RateLimitRPS)
	require.Equal(t, "KEYCHAIN_MASTER_KEY", cfg.MasterKeyEnv)
}

func TestLoadClientConfigOverrides(t *testing.T) {
	t.Setenv("JWTCLIENT_BASE_URL", "https://auth.example.com")
	t.Setenv("JWTCLIENT_EXPIRY_SKEW", "45")
	t.Setenv("JWTCLIENT_REQUEST_TIMEOUT", "5s")
	t.Setenv("JWTCLIENT_RATE_LIMIT_RPS", "2.5")
	t.Setenv("KEYCHAIN_DRIVER", "Redis")

	cfg := LoadClientConfig()
	require.Equal(t, "https://auth.example.com", cfg.BaseURL)
	require.Equal(t, 45*time.Second, cfg.ExpirySkew)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.InDelta(t, 2.5, cfg.RateLimitRPS, 0.0001)
	require.Equal(t, DriverRedis, cfg.KeychainDriver)
}

func TestLoadServerConfig(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEVSERVER_ROTATE_REFRESH", "true")
	t.Setenv("DEVSERVER_ACCESS_TTL", "1m")
	t.Setenv("DEVSERVER_USERS", "")

	cfg := LoadServerConfig()
	require.Equal(t, 9090, cfg.Port)
	require.True(t, cfg.RotateRefresh)
	require.Equal(t, time.Minute, cfg.AccessTTL)
	require.Empty(t, cfg.Users)
	require.Equal(t, 10, cfg.AuthRateLimit)
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_FLOAT", "-1")
	t.Setenv("X_DURATION", "soon")

	require.Equal(t, 7, getEnvIntOrDefault("X_INT", 7))
	require.True(t, getEnvBoolOrDefault("X_BOOL", true))
	require.InDelta(t, 1.5, getEnvFloatOrDefault("X_FLOAT", 1.5), 0.0001)
	require.Equal(t, time.Hour, getEnvDurationOrDefault("X_DURATION", time.Hour))
}
