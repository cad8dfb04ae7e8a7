// Package keychain stores the session's token pair in a single secure slot.
//
// A Backend is a dumb key-value store addressed by a service/account pair.
// TokenStore seals the pair with AES-GCM before it ever reaches a backend,
// so a backend only sees ciphertext.
package keychain

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("keychain: not found")

const (
	DefaultService = "jwtclient"
	DefaultAccount = "default"
)

// Backend persists opaque values. Drivers live in the sqlite and redis
// subpackages; NewMemoryBackend covers tests and throwaway sessions.
type Backend interface {
	// Get returns ErrNotFound when the slot is empty.
	Get(ctx context.Context, service, account string) ([]byte, error)

	// Put inserts or replaces the value in the slot.
	Put(ctx context.Context, service, account string, value []byte) error

	// Delete empties the slot. Deleting an empty slot is not an error.
	Delete(ctx context.Context, service, account string) error

	// Close releases any underlying resources.
	Close() error
}
