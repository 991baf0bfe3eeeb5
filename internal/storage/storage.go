// Package storage provides the durable key-value store backing the sync queue
// and the performance snapshot ring buffer. Values are JSON blobs keyed by
// string; each owning store writes only its own key.
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

var ErrClosed = errors.New("storage closed")

// Store is the minimal persistence API used by the queue and perf stores.
// Get reports whether the key existed; a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Config selects and configures a backend.
//
// Driver values:
//   - "memory": process-local map, no durability (tests, demos)
//   - "redis": Redis string keys
//   - "sqlite": single-file SQLite database
//   - "postgres": PostgreSQL kv table
type Config struct {
	Driver string
	Addr   string // redis
	Path   string // sqlite
	DSN    string // postgres
}

// Open initializes the configured store.
func Open(cfg Config, log zerolog.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.Addr)
	case "sqlite", "sqlite3":
		return OpenSQLite(cfg.Path, log)
	case "postgres", "postgresql":
		return NewPostgresStore(cfg.DSN)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
