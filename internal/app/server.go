package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/jwtclient/internal/devserver"
	"github.com/aussiebroadwan/jwtclient/pkg/cryptox"
	"github.com/aussiebroadwan/jwtclient/pkg/httpx"
	"github.com/aussiebroadwan/jwtclient/pkg/slogx"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application is the development server process.
type Application struct {
	cfg    ServerConfig
	logger *slog.Logger

	devserver    *devserver.Server
	housekeeping *devserver.Housekeeping
	server       *http.Server
}

// NewServer builds the dev server and its HTTP listener.
func NewServer(cfg ServerConfig) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "jwtclient-devserver",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	userSpec := cfg.Users
	if userSpec == "" {
		password, err := cryptox.GeneratePassword(16)
		if err != nil {
			return nil, fmt.Errorf("failed to generate demo password: %w", err)
		}
		userSpec = "demo:" + password
		app.logger.Warn("DEVSERVER_USERS not set, created a demo user", "username", "demo", "password", password)
	}

	users, err := devserver.ParseUsers(userSpec)
	if err != nil {
		return nil, err
	}

	var signingKey []byte
	if cfg.SigningKeyPath != "" {
		signingKey, err = os.ReadFile(cfg.SigningKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key: %w", err)
		}
	}

	srv, err := devserver.New(devserver.Config{
		Issuer:        cfg.Issuer,
		Version:       BuildVersion,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		RotateRefresh: cfg.RotateRefresh,
		Users:         users,
		SigningKeyPEM: signingKey,
		AuthLimit: httpx.RateLimitConfig{
			RequestsPerWindow: cfg.AuthRateLimit,
			Window:            time.Minute,
			Burst:             cfg.AuthRateLimit,
		},
	}, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dev server: %w", err)
	}
	app.devserver = srv

	app.housekeeping = devserver.NewHousekeeping(srv.Tokens, app.logger, cfg.HousekeepingInterval)

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return app, nil
}

// Handler exposes the router, mostly for tests.
func (app *Application) Handler() http.Handler {
	return app.devserver
}

// Run starts the server and blocks until a signal or a server error.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("dev server starting",
		"port", app.cfg.Port,
		"rotate_refresh", app.cfg.RotateRefresh,
		"access_ttl", app.cfg.AccessTTL,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		app.housekeeping.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests and stops housekeeping.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down dev server...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	var err error
	if err = app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "err", err)
		if closeErr := app.server.Close(); closeErr != nil {
			app.logger.Error("error closing server", "err", closeErr)
		}
	}

	app.housekeeping.Stop()

	app.logger.Info("dev server stopped")
	return err
}
