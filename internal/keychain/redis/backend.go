// Package redis is a keychain.Backend on Redis, for sessions shared by
// several processes or hosts.
package redis

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/jwtclient/internal/keychain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "keychain"

type Backend struct {
	rdb *redis.Client
}

var _ keychain.Backend = (*Backend)(nil)

// New wraps an existing client. Close closes it.
func New(rdb *redis.Client) *Backend {
	return &Backend{rdb: rdb}
}

// Open connects to the server at addr and checks it answers.
func Open(ctx context.Context, addr string) (*Backend, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return New(rdb), nil
}

func key(service, account string) string {
	return keyPrefix + ":" + service + ":" + account
}

func (b *Backend) Get(ctx context.Context, service, account string) ([]byte, error) {
	value, err := b.rdb.Get(ctx, key(service, account)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, keychain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *Backend) Put(ctx context.Context, service, account string, value []byte) error {
	return b.rdb.Set(ctx, key(service, account), value, 0).Err()
}

func (b *Backend) Delete(ctx context.Context, service, account string) error {
	return b.rdb.Del(ctx, key(service, account)).Err()
}

func (b *Backend) Close() error { return b.rdb.Close() }
