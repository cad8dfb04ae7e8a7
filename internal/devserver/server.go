package devserver

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/jwtclient/pkg/httpx"
	"github.com/aussiebroadwan/jwtclient/pkg/jwtx"
)

// Config controls a dev server instance.
type Config struct {
	Issuer        string
	Version       string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RotateRefresh bool
	Users         []User

	// SigningKeyPEM is a PKCS8 Ed25519 key. A fresh key is generated when
	// empty, so tokens don't survive a restart.
	SigningKeyPEM []byte

	// AuthLimit overrides httpx.DefaultLoginLimit when RequestsPerWindow
	// is set.
	AuthLimit httpx.RateLimitConfig
}

// Server bundles the router with the services behind it.
type Server struct {
	*Router
	Verifier *jwtx.EdDSAVerifier
}

// New builds a ready to serve router.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if len(cfg.Users) == 0 {
		return nil, errors.New("devserver: at least one user is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "jwtclient-devserver"
	}

	var (
		signer *jwtx.EdDSASigner
		err    error
	)
	if len(cfg.SigningKeyPEM) > 0 {
		signer, err = jwtx.NewSignerEdDSA("dev-1", cfg.SigningKeyPEM)
	} else {
		signer, err = jwtx.GenerateSignerEdDSA("dev-1")
	}
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}

	tokens := NewTokenService(signer, cfg.Issuer, cfg.Users)
	if cfg.AccessTTL > 0 {
		tokens.AccessTTL = cfg.AccessTTL
	}
	if cfg.RefreshTTL > 0 {
		tokens.RefreshTTL = cfg.RefreshTTL
	}
	tokens.RotateRefresh = cfg.RotateRefresh

	verifier := jwtx.NewVerifierEdDSA(signer, cfg.Issuer)

	r := NewRouter(tokens, verifier, cfg.Version, logger)
	if cfg.AuthLimit.RequestsPerWindow > 0 {
		r.AuthLimit = cfg.AuthLimit
	}
	r.ApplyRoutes()

	return &Server{Router: r, Verifier: verifier}, nil
}
