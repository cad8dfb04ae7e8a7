package authclient

import (
	"context"
	"sync"
)

// TokenStore persists the current TokenPair in a single opaque slot.
//
// Load returns a zero TokenPair and a nil error when nothing is stored.
// Clearing an empty store is not an error.
type TokenStore interface {
	Save(ctx context.Context, pair TokenPair) error
	Load(ctx context.Context) (TokenPair, error)
	Clear(ctx context.Context) error
}

// MemoryTokenStore keeps the pair in process memory. Nothing survives a
// restart; use it for tests and short-lived tools.
type MemoryTokenStore struct {
	mu   sync.Mutex
	pair TokenPair
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) Save(_ context.Context, pair TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
	return nil
}

func (m *MemoryTokenStore) Load(_ context.Context) (TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair, nil
}

func (m *MemoryTokenStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = TokenPair{}
	return nil
}
