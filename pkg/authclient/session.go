package authclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/aussiebroadwan/jwtclient/pkg/jwtx"
)

// DefaultExpirySkew is how long before its "exp" an access token is
// already treated as expired.
const DefaultExpirySkew = 30 * time.Second

// DefaultLogoutTimeout bounds the best-effort POST /logout.
const DefaultLogoutTimeout = 5 * time.Second

// State is the authentication state of a Session.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Status is the observable state of a Session. Message holds the last
// failure worth showing to a user and is empty otherwise.
type Status struct {
	State   State
	Message string
}

// Session owns the token pair. It hands out valid access tokens, refreshing
// them at most once at a time, and keeps the TokenStore in step.
type Session struct {
	transport     *Transport
	store         TokenStore
	refresher     Refresher
	log           *slog.Logger
	skew          time.Duration
	logoutTimeout time.Duration
	now           func() time.Time

	mu     sync.RWMutex
	tokens TokenPair
	status Status
	gen    uint64 // bumped on every change to tokens
	subs   []chan Status

	// storeMu orders writes to the store so an older pair never lands
	// after a newer one.
	storeMu sync.Mutex
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithExpirySkew refreshes access tokens d before they actually expire.
func WithExpirySkew(d time.Duration) SessionOption {
	return func(s *Session) { s.skew = d }
}

// WithSessionLogger sets the session's logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// WithLogoutTimeout bounds the server notification sent on logout.
func WithLogoutTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.logoutTimeout = d }
}

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession restores whatever the store holds. A stored access token
// makes the session Authenticated straight away; its expiry is only looked
// at when the token is first needed. A store that fails to load is logged
// and the session starts Unauthenticated.
func NewSession(ctx context.Context, transport *Transport, store TokenStore, opts ...SessionOption) (*Session, error) {
	if transport == nil {
		return nil, errors.New("authclient: transport is required")
	}
	if store == nil {
		store = NewMemoryTokenStore()
	}

	s := &Session{
		transport:     transport,
		store:         store,
		log:           slog.Default(),
		skew:          DefaultExpirySkew,
		logoutTimeout: DefaultLogoutTimeout,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	pair, err := store.Load(ctx)
	if err != nil {
		s.log.Warn("failed to load stored tokens", "err", err)
		return s, nil
	}

	s.tokens = pair
	if pair.AccessToken != "" {
		s.status = Status{State: Authenticated}
	}

	return s, nil
}

// Login exchanges credentials for a token pair. On failure any local
// tokens are dropped and the error is returned as well as recorded in the
// session's Status.
func (s *Session) Login(ctx context.Context, username, password string) error {
	resp, err := Send[TokenResponse](ctx, s.transport, Request{
		Method: http.MethodPost,
		Path:   "/login",
		Body:   LoginRequest{Username: username, Password: password},
	})
	if err == nil && resp.AccessToken == "" {
		err = &DecodingError{Err: errors.New("login response has no accessToken")}
	}

	if err != nil {
		err = fmt.Errorf("login: %w", err)

		s.mu.Lock()
		gen := s.resetLocked(Status{State: Unauthenticated, Message: err.Error()})
		s.mu.Unlock()

		s.writeStore(ctx, gen, TokenPair{})
		return err
	}

	pair := TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.tokens = pair
	s.setStatusLocked(Status{State: Authenticated})
	s.mu.Unlock()

	s.writeStore(ctx, gen, pair)
	s.log.Info("logged in", "user", username)
	return nil
}

// Logout forgets the tokens locally and in the store, then tells the
// server about the old refresh token if there was one. The server call is
// best-effort and never undoes the local logout. Logging out twice is
// harmless and the second call makes no request.
func (s *Session) Logout(ctx context.Context) error {
	return s.logout(ctx, false)
}

// expire is the logout used when the server has stopped accepting this
// session.
func (s *Session) expire(ctx context.Context) {
	_ = s.logout(ctx, true)
}

func (s *Session) logout(ctx context.Context, forced bool) error {
	s.mu.Lock()
	refreshToken := s.tokens.RefreshToken
	next := Status{State: Unauthenticated}
	if forced {
		next.Message = s.expiredMessageLocked()
	}
	gen := s.resetLocked(next)
	s.mu.Unlock()

	// The local part has to finish even if the caller is going away
	detached := context.WithoutCancel(ctx)
	s.writeStore(detached, gen, TokenPair{})

	if refreshToken != "" {
		s.notifyLogout(detached, refreshToken)
	}

	return ctx.Err()
}

func (s *Session) notifyLogout(ctx context.Context, refreshToken string) {
	ctx, cancel := context.WithTimeout(ctx, s.logoutTimeout)
	defer cancel()

	_, err := Send[NoContent](ctx, s.transport, Request{
		Method: http.MethodPost,
		Path:   "/logout",
		Body:   RefreshRequest{Token: refreshToken},
	})
	if err != nil {
		s.log.Warn("failed to notify server of logout", "err", err)
	}
}

// ValidAccessToken returns an access token that is not about to expire,
// refreshing it first when needed. Concurrent callers share one refresh.
//
// When no refresh token is available it fails with ErrMissingRefreshToken
// without contacting the server. A failed refresh ends the session: the
// tokens are cleared, Status carries SessionExpiredMessage and the refresh
// error is returned.
func (s *Session) ValidAccessToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	token := s.tokens.AccessToken
	s.mu.RUnlock()

	if token != "" && !s.expired(token) {
		return token, nil
	}

	return s.refresher.Run(ctx, s.refresh)
}

// refresh runs inside the Refresher, so at most one is active at a time.
func (s *Session) refresh(ctx context.Context) (string, error) {
	s.mu.RLock()
	pair, gen := s.tokens, s.gen
	s.mu.RUnlock()

	// Whoever held the previous flight may already have refreshed
	if pair.AccessToken != "" && !s.expired(pair.AccessToken) {
		return pair.AccessToken, nil
	}

	if pair.RefreshToken == "" {
		s.dropTokens(ctx, gen)
		return "", ErrMissingRefreshToken
	}

	resp, err := Send[TokenResponse](ctx, s.transport, Request{
		Method: http.MethodPost,
		Path:   "/refresh",
		Body:   RefreshRequest{Token: pair.RefreshToken},
	})
	if err == nil && resp.AccessToken == "" {
		err = &DecodingError{Err: errors.New("refresh response has no accessToken")}
	}

	if err != nil {
		s.log.Warn("token refresh failed, ending session", "err", err)
		s.dropTokens(ctx, gen)
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	next := TokenPair{AccessToken: resp.AccessToken, RefreshToken: pair.RefreshToken}
	if resp.RefreshToken != "" {
		next.RefreshToken = resp.RefreshToken
	}

	s.mu.Lock()
	if s.gen != gen {
		// A login or logout happened while the refresh was out
		current := s.tokens.AccessToken
		s.mu.Unlock()
		if current != "" && !s.expired(current) {
			return current, nil
		}
		return "", fmt.Errorf("refresh access token: session changed: %w", ErrUnauthorized)
	}
	s.gen++
	gen = s.gen
	s.tokens = next
	s.setStatusLocked(Status{State: Authenticated})
	s.mu.Unlock()

	s.writeStore(ctx, gen, next)
	s.log.Debug("access token refreshed", "rotated", resp.RefreshToken != "")
	return next.AccessToken, nil
}

// dropTokens clears the session after an unrecoverable refresh failure,
// unless the tokens changed since gen was read.
func (s *Session) dropTokens(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	cleared := s.resetLocked(Status{State: Unauthenticated, Message: s.expiredMessageLocked()})
	s.mu.Unlock()

	s.writeStore(ctx, cleared, TokenPair{})
}

func (s *Session) expired(token string) bool {
	return jwtx.IsExpiredAt(token, s.skew, s.now())
}

// expiredMessageLocked keeps an existing message when the session was not
// authenticated to begin with.
func (s *Session) expiredMessageLocked() string {
	if s.status.State == Authenticated {
		return SessionExpiredMessage
	}
	return s.status.Message
}

func (s *Session) resetLocked(st Status) uint64 {
	s.gen++
	s.tokens = TokenPair{}
	s.setStatusLocked(st)
	return s.gen
}

// writeStore persists pair, or clears the store for a zero pair. Writes
// for a generation that has since been superseded are skipped. Failures
// are logged and otherwise ignored.
func (s *Session) writeStore(ctx context.Context, gen uint64, pair TokenPair) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	s.mu.RLock()
	stale := s.gen != gen
	s.mu.RUnlock()
	if stale {
		return
	}

	var err error
	if pair.IsZero() {
		err = s.store.Clear(ctx)
	} else {
		err = s.store.Save(ctx, pair)
	}
	if err != nil {
		s.log.Warn("failed to persist tokens", "err", err)
	}
}

// AccessToken returns the current access token without checking expiry.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.AccessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.RefreshToken
}

// Status returns the current authentication state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Subscribe returns a channel that receives the current Status and every
// change after it. A slow reader only ever sees the latest value. Call the
// returned function to stop; it closes the channel.
func (s *Session) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	s.mu.Lock()
	ch <- s.status
	s.subs = append(s.subs, ch)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.subs = slices.DeleteFunc(s.subs, func(c chan Status) bool { return c == ch })
			close(ch)
		})
	}

	return ch, cancel
}

func (s *Session) setStatusLocked(st Status) {
	if s.status == st {
		return
	}
	s.status = st

	for _, ch := range s.subs {
		// Replace whatever the subscriber has not read yet
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}
