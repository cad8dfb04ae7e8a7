// Package devserver is a small token issuer speaking the /login, /refresh
// and /logout contract the client expects. It keeps everything in memory
// and is meant for local development and tests.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/jwtclient/pkg/cryptox"
	"github.com/aussiebroadwan/jwtclient/pkg/idx"
	"github.com/aussiebroadwan/jwtclient/pkg/jwtx"
	"github.com/aussiebroadwan/jwtclient/pkg/slogx"
)

// DefaultRefreshTTL is how long an unused refresh token stays valid.
const DefaultRefreshTTL = 7 * 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
)

// User is an account the server accepts.
type User struct {
	ID           string
	Username     string
	PasswordHash string
}

// NewUser hashes password with argon2id.
func NewUser(username, password string) (User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password for %q: %w", username, err)
	}
	return User{ID: idx.New().String(), Username: username, PasswordHash: hash}, nil
}

// ParseUsers reads "alice:secret,bob:hunter2".
func ParseUsers(spec string) ([]User, error) {
	var users []User
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, password, ok := strings.Cut(entry, ":")
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("devserver: bad user entry %q, want name:password", entry)
		}

		u, err := NewUser(name, password)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// TokenPair is what /login and /refresh hand back.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type refreshRecord struct {
	userID    string
	sessionID string
	expiresAt time.Time
}

// TokenService issues EdDSA access tokens and opaque refresh tokens. Only
// SHA-256 fingerprints of refresh tokens are kept.
type TokenService struct {
	Signer     jwtx.Signer
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// RotateRefresh swaps the refresh token on every refresh and revokes
	// the old one.
	RotateRefresh bool

	Now func() time.Time

	mu      sync.Mutex
	users   map[string]User // by username
	byID    map[string]User
	refresh map[string]refreshRecord // by fingerprint
}

func NewTokenService(signer jwtx.Signer, issuer string, users []User) *TokenService {
	s := &TokenService{
		Signer:     signer,
		Issuer:     issuer,
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: DefaultRefreshTTL,
		Now:        time.Now,
		users:      make(map[string]User, len(users)),
		byID:       make(map[string]User, len(users)),
		refresh:    make(map[string]refreshRecord),
	}
	for _, u := range users {
		s.users[u.Username] = u
		s.byID[u.ID] = u
	}
	return s
}

// Login checks the password and starts a new session.
func (s *TokenService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	l := slogx.FromContext(ctx)

	s.mu.Lock()
	u, ok := s.users[username]
	s.mu.Unlock()

	if !ok || cryptox.VerifyPassword(password, u.PasswordHash) != nil {
		l.Info("login rejected", "username", username)
		return nil, ErrInvalidCredentials
	}

	now := s.Now()
	sessionID := idx.New().String()

	access, err := s.signAccess(u, sessionID, now)
	if err != nil {
		return nil, err
	}

	refresh, err := s.issueRefresh(u.ID, sessionID, now)
	if err != nil {
		return nil, err
	}

	l.Info("login succeeded", "user_id", u.ID, "sid", sessionID)
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh mints a new access token for a live refresh token. The refresh
// token is only returned when it was rotated.
func (s *TokenService) Refresh(ctx context.Context, refreshOpaque string) (*TokenPair, error) {
	now := s.Now()
	fp := cryptox.FingerprintToken(refreshOpaque)

	s.mu.Lock()
	rec, ok := s.refresh[fp]
	if ok && now.After(rec.expiresAt) {
		delete(s.refresh, fp)
		ok = false
	}
	var u User
	if ok {
		u, ok = s.byID[rec.userID]
	}
	if ok && s.RotateRefresh {
		delete(s.refresh, fp)
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrInvalidRefresh
	}

	access, err := s.signAccess(u, rec.sessionID, now)
	if err != nil {
		return nil, err
	}

	pair := &TokenPair{AccessToken: access}
	if s.RotateRefresh {
		pair.RefreshToken, err = s.issueRefresh(u.ID, rec.sessionID, now)
		if err != nil {
			return nil, err
		}
	}

	slogx.FromContext(ctx).Debug("access token refreshed", "user_id", u.ID, "rotated", s.RotateRefresh)
	return pair, nil
}

// Revoke forgets a refresh token. Unknown tokens are ignored.
func (s *TokenService) Revoke(_ context.Context, refreshOpaque string) {
	fp := cryptox.FingerprintToken(refreshOpaque)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, fp)
}

// UserByID looks up the owner of an access token.
func (s *TokenService) UserByID(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	return u, ok
}

// DeleteExpired drops refresh tokens past their expiry and returns how
// many went.
func (s *TokenService) DeleteExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for fp, rec := range s.refresh {
		if now.After(rec.expiresAt) {
			delete(s.refresh, fp)
			n++
		}
	}
	return n
}

// ActiveRefreshTokens is the number of refresh tokens currently accepted.
func (s *TokenService) ActiveRefreshTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refresh)
}

func (s *TokenService) signAccess(u User, sessionID string, now time.Time) (string, error) {
	claims := jwtx.NewAccessClaims(u.ID, sessionID, u.Username, s.Issuer, s.AccessTTL, now)
	return s.Signer.Sign(claims)
}

func (s *TokenService) issueRefresh(userID, sessionID string, now time.Time) (string, error) {
	opaque, err := cryptox.GenerateToken(cryptox.RefreshTokenSize)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.refresh[cryptox.FingerprintToken(opaque)] = refreshRecord{
		userID:    userID,
		sessionID: sessionID,
		expiresAt: now.Add(s.RefreshTTL),
	}
	s.mu.Unlock()

	return opaque, nil
}
