package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Keychain drivers understood by KEYCHAIN_DRIVER.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// ClientConfig drives the CLI.
type ClientConfig struct {
	BaseURL        string        // Auth server base URL (default: http://localhost:8080)
	RequestTimeout time.Duration // Per-attempt HTTP timeout (default: 30s)
	ExpirySkew     time.Duration // Refresh this long before "exp" (default: 30s)
	RateLimitRPS   float64       // Outgoing requests per second, 0 disables (default: 0)

	KeychainDriver     string // memory, sqlite or redis (default: sqlite)
	KeychainSQLiteFile string // SQLite file for the sqlite driver (default: ./jwtclient.db)
	KeychainRedisAddr  string // Redis address for the redis driver (default: localhost:6379)
	KeychainService    string // Slot service name (default: jwtclient)
	KeychainAccount    string // Slot account name (default: default)
	MasterKeyPath      string // Optional: file holding the sealing key material
	MasterKeyEnv       string // Env var holding the sealing key material (default: KEYCHAIN_MASTER_KEY)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: warn)
	LogFormat string // Log format (json, text) (default: text)
}

func LoadClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        getEnvOrDefault("JWTCLIENT_BASE_URL", "http://localhost:8080"),
		RequestTimeout: getEnvDurationOrDefault("JWTCLIENT_REQUEST_TIMEOUT", 30*time.Second),
		ExpirySkew:     getEnvDurationOrDefault("JWTCLIENT_EXPIRY_SKEW", 30*time.Second),
		RateLimitRPS:   getEnvFloatOrDefault("JWTCLIENT_RATE_LIMIT_RPS", 0),

		KeychainDriver:     strings.ToLower(getEnvOrDefault("KEYCHAIN_DRIVER", DriverSQLite)),
		KeychainSQLiteFile: getEnvOrDefault("KEYCHAIN_SQLITE_FILE", "jwtclient.db"),
		KeychainRedisAddr:  getEnvOrDefault("KEYCHAIN_REDIS_ADDR", "localhost:6379"),
		KeychainService:    getEnvOrDefault("KEYCHAIN_SERVICE", "jwtclient"),
		KeychainAccount:    getEnvOrDefault("KEYCHAIN_ACCOUNT", "default"),
		MasterKeyPath:      os.Getenv("KEYCHAIN_MASTER_KEY_PATH"),
		MasterKeyEnv:       "KEYCHAIN_MASTER_KEY",

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

// ServerConfig drives the development server.
type ServerConfig struct {
	Port                 int           // HTTP server port (default: 8080)
	Issuer               string        // "iss" claim (default: jwtclient-devserver)
	AccessTTL            time.Duration // Access token lifetime (default: 15m)
	RefreshTTL           time.Duration // Refresh token lifetime (default: 7 days)
	RotateRefresh        bool          // Rotate refresh tokens on use (default: false)
	Users                string        // "name:password,..." (default: a generated demo user)
	SigningKeyPath       string        // Optional: PKCS8 PEM Ed25519 key, generated when unset
	AuthRateLimit        int           // /login and /refresh requests per minute per IP (default: 10)
	HousekeepingInterval time.Duration // Expired token sweep interval (default: 1h)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)

	Env       string
	LogLevel  string
	LogFormat string
}

func LoadServerConfig() ServerConfig {
	return ServerConfig{
		Port:                 getEnvIntOrDefault("PORT", 8080),
		Issuer:               getEnvOrDefault("DEVSERVER_ISSUER", "jwtclient-devserver"),
		AccessTTL:            getEnvDurationOrDefault("DEVSERVER_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:           getEnvDurationOrDefault("DEVSERVER_REFRESH_TTL", 7*24*time.Hour),
		RotateRefresh:        getEnvBoolOrDefault("DEVSERVER_ROTATE_REFRESH", false),
		Users:                os.Getenv("DEVSERVER_USERS"),
		SigningKeyPath:       os.Getenv("DEVSERVER_SIGNING_KEY_PATH"),
		AuthRateLimit:        getEnvIntOrDefault("DEVSERVER_AUTH_RATE_LIMIT", 10),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
		return f
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
