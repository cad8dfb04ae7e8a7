package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/aussiebroadwan/jwtclient/internal/keychain"
	keychainredis "github.com/aussiebroadwan/jwtclient/internal/keychain/redis"
	"github.com/aussiebroadwan/jwtclient/internal/keychain/sqlite"
	"github.com/aussiebroadwan/jwtclient/pkg/authclient"
	"github.com/aussiebroadwan/jwtclient/pkg/cryptox"
	"golang.org/x/time/rate"
)

// Client is the CLI's view of the auth stack: one transport, one session
// persisted through the keychain, and the client that calls resources.
type Client struct {
	Transport *authclient.Transport
	Session   *authclient.Session
	API       *authclient.Client

	backend keychain.Backend
	logger  *slog.Logger
}

// NewClient opens the configured keychain and restores the session from it.
func NewClient(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open keychain: %w", err)
	}

	material, ephemeral, err := cryptox.LoadMasterKey(cfg.MasterKeyPath, cfg.MasterKeyEnv)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}
	if ephemeral && cfg.KeychainDriver != DriverMemory {
		// A persistent store needs a key that outlives the process
		keyPath, err := defaultMasterKeyPath(cfg)
		if err == nil {
			var created bool
			material, created, err = cryptox.LoadOrCreateMasterKey(keyPath)
			if created {
				logger.Info("generated keychain master key", "path", keyPath)
			}
		}
		if err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to load default master key: %w", err)
		}
	}

	sealer, err := cryptox.NewSealer(material)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to create sealer: %w", err)
	}

	store := keychain.NewTokenStore(backend, sealer,
		keychain.WithSlot(cfg.KeychainService, cfg.KeychainAccount))

	transport := authclient.NewTransport(cfg.BaseURL, transportOptions(cfg, logger)...)

	session, err := authclient.NewSession(ctx, transport, store,
		authclient.WithExpirySkew(cfg.ExpirySkew),
		authclient.WithSessionLogger(logger),
	)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &Client{
		Transport: transport,
		Session:   session,
		API:       authclient.NewClient(session, transport),
		backend:   backend,
		logger:    logger,
	}, nil
}

// Close releases the keychain backend.
func (c *Client) Close() error {
	return c.backend.Close()
}

func transportOptions(cfg ClientConfig, logger *slog.Logger) []authclient.TransportOption {
	opts := []authclient.TransportOption{
		authclient.WithRequestTimeout(cfg.RequestTimeout),
		authclient.WithLogger(logger),
	}

	if cfg.RateLimitRPS > 0 {
		burst := max(1, int(math.Ceil(cfg.RateLimitRPS)))
		opts = append(opts, authclient.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)))
	}

	return opts
}

// defaultMasterKeyPath is used when neither KEYCHAIN_MASTER_KEY_PATH nor
// the key env var is set: next to the database for sqlite, under the user
// config dir otherwise.
func defaultMasterKeyPath(cfg ClientConfig) (string, error) {
	if cfg.KeychainDriver == DriverSQLite || cfg.KeychainDriver == "" {
		return cfg.KeychainSQLiteFile + ".key", nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "jwtclient", cfg.KeychainService+".key"), nil
}

func openBackend(ctx context.Context, cfg ClientConfig) (keychain.Backend, error) {
	switch cfg.KeychainDriver {
	case DriverMemory:
		return keychain.NewMemoryBackend(), nil
	case DriverSQLite, "":
		return sqlite.Open(sqlite.DSN(cfg.KeychainSQLiteFile))
	case DriverRedis:
		return keychainredis.Open(ctx, cfg.KeychainRedisAddr)
	default:
		return nil, errors.New("unknown keychain driver " + cfg.KeychainDriver)
	}
}
