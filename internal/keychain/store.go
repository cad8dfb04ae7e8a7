package keychain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/jwtclient/pkg/authclient"
	"github.com/aussiebroadwan/jwtclient/pkg/cryptox"
)

// TokenStore is an authclient.TokenStore that keeps the pair sealed in one
// backend slot.
type TokenStore struct {
	backend Backend
	sealer  *cryptox.Sealer
	service string
	account string
}

var _ authclient.TokenStore = (*TokenStore)(nil)

type Option func(*TokenStore)

// WithSlot overrides the default service/account pair.
func WithSlot(service, account string) Option {
	return func(s *TokenStore) {
		if service != "" {
			s.service = service
		}
		if account != "" {
			s.account = account
		}
	}
}

func NewTokenStore(backend Backend, sealer *cryptox.Sealer, opts ...Option) *TokenStore {
	s := &TokenStore{
		backend: backend,
		sealer:  sealer,
		service: DefaultService,
		account: DefaultAccount,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// additionalData binds a sealed blob to its slot, moving it to another
// slot makes it fail to open.
func (s *TokenStore) additionalData() []byte {
	return []byte(s.service + "/" + s.account)
}

func (s *TokenStore) Save(ctx context.Context, pair authclient.TokenPair) error {
	plaintext, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("keychain: encode tokens: %w", err)
	}

	sealed, err := s.sealer.Seal(plaintext, s.additionalData())
	if err != nil {
		return fmt.Errorf("keychain: seal tokens: %w", err)
	}

	if err := s.backend.Put(ctx, s.service, s.account, sealed); err != nil {
		return fmt.Errorf("keychain: save tokens: %w", err)
	}
	return nil
}

func (s *TokenStore) Load(ctx context.Context) (authclient.TokenPair, error) {
	sealed, err := s.backend.Get(ctx, s.service, s.account)
	if errors.Is(err, ErrNotFound) {
		return authclient.TokenPair{}, nil
	}
	if err != nil {
		return authclient.TokenPair{}, fmt.Errorf("keychain: load tokens: %w", err)
	}

	plaintext, err := s.sealer.Open(sealed, s.additionalData())
	if err != nil {
		return authclient.TokenPair{}, fmt.Errorf("keychain: open tokens: %w", err)
	}

	var pair authclient.TokenPair
	if err := json.Unmarshal(plaintext, &pair); err != nil {
		return authclient.TokenPair{}, fmt.Errorf("keychain: decode tokens: %w", err)
	}
	return pair, nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	err := s.backend.Delete(ctx, s.service, s.account)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("keychain: clear tokens: %w", err)
	}
	return nil
}
