package keychain

import (
	"context"
	"slices"
	"sync"
)

type memoryBackend struct {
	mu    sync.RWMutex
	items map[[2]string][]byte
}

// NewMemoryBackend returns a Backend that lives and dies with the process.
func NewMemoryBackend() Backend {
	return &memoryBackend{items: make(map[[2]string][]byte)}
}

func (m *memoryBackend) Get(_ context.Context, service, account string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[[2]string{service, account}]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *memoryBackend) Put(_ context.Context, service, account string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[[2]string{service, account}] = slices.Clone(value)
	return nil
}

func (m *memoryBackend) Delete(_ context.Context, service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, [2]string{service, account})
	return nil
}

func (m *memoryBackend) Close() error { return nil }
