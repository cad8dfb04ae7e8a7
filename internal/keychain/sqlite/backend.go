// Package sqlite is a keychain.Backend on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/jwtclient/internal/keychain"
	_ "modernc.org/sqlite"
)

type Backend struct {
	db  *sql.DB
	now func() time.Time
}

var _ keychain.Backend = (*Backend)(nil)

// DSN builds a connection string for the database file at path.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}

// Open connects to dsn and applies any pending migrations.
func Open(dsn string) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	b := &Backend{db: db, now: time.Now}
	if err := b.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("keychain sqlite: apply migrations: %w", err)
	}

	return b, nil
}

func (b *Backend) Close() error { return b.db.Close() }

// Ping verifies the database connection is still alive.
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

const getItem = `SELECT value FROM secure_items WHERE service = ? AND account = ?`

func (b *Backend) Get(ctx context.Context, service, account string) ([]byte, error) {
	var value []byte
	err := b.db.QueryRowContext(ctx, getItem, service, account).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, keychain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

const upsertItem = `
INSERT INTO secure_items (service, account, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (service, account) DO UPDATE SET
    value = excluded.value,
    updated_at = excluded.updated_at`

func (b *Backend) Put(ctx context.Context, service, account string, value []byte) error {
	_, err := b.db.ExecContext(ctx, upsertItem, service, account, value, b.now().UTC())
	return err
}

const deleteItem = `DELETE FROM secure_items WHERE service = ? AND account = ?`

func (b *Backend) Delete(ctx context.Context, service, account string) error {
	_, err := b.db.ExecContext(ctx, deleteItem, service, account)
	return err
}
