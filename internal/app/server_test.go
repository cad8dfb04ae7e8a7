package app_test

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/jwtclient/internal/app"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	application, err := app.NewServer(app.ServerConfig{
		Port:                0,
		Users:               "alice:secret",
		AuthRateLimit:       5,
		ShutdownGracePeriod: time.Second,
		LogLevel:            "error",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServerRejectsBadUsers(t *testing.T) {
	_, err := app.NewServer(app.ServerConfig{Users: "nopassword", LogLevel: "error"})
	require.Error(t, err)
}

func TestNewServerGeneratesDemoUser(t *testing.T) {
	application, err := app.NewServer(app.ServerConfig{LogLevel: "error"})
	require.NoError(t, err)
	require.NotNil(t, application.Handler())
}

func TestNewServerMissingSigningKey(t *testing.T) {
	_, err := app.NewServer(app.ServerConfig{
		Users:          "alice:secret",
		SigningKeyPath: filepath.Join(t.TempDir(), "missing.pem"),
		LogLevel:       "error",
	})
	require.Error(t, err)
}
