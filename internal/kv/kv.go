// internal/kv/kv.go
//
// Key-value store contract shared by the record layer and the router.
//
// Context
// -------
// Tenant and domain records live in a flat key space (`subdomain:<name>`,
// `domain:<name>`).  The platform only needs point reads, overwrites, an
// insert-if-absent, deletes, and a pattern listing, so any backend that can
// offer those six calls qualifies.  Three ship in this package:
//
//   • Redis  – production default, shared by every instance.
//   • MySQL  – one `kv_entry` table, for deployments that already run MySQL.
//   • Memory – single process only; development and tests.
//
// Workflow
// --------
//   1. cmd/web calls kv.Open(ctx, cfg) once at boot.
//   2. The returned Store is injected into record.Store and nothing else.
//   3. Close() runs on shutdown.
//
// Notes
// -----
// • Values are opaque bytes; JSON encoding belongs to the record layer.
// • Keys() accepts Redis glob syntax.  Backends that cannot express the full
//   syntax support at least `*`.
// • Oxford commas, two spaces after periods.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/taubermatt/platform/internal/database"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// Store is the backend contract.  Implementations are safe for concurrent
// use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte) error
	// SetNX writes val only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, val []byte) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	// MGet returns one entry per key, nil where the key is missing.
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverRedis  = "redis"
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config selects and addresses a backend.
type Config struct {
	Driver   string
	RedisURL string
	MySQLDSN string
}

// Open builds the configured backend and verifies it is reachable.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverRedis:
		return NewRedis(ctx, cfg.RedisURL)
	case DriverMySQL:
		db, err := database.Open(cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("kv mysql open: %w", err)
		}
		s := NewSQL(db)
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil
	case DriverMemory, "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("kv: unknown driver %q", cfg.Driver)
	}
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Redis)(nil)
	_ Store = (*SQL)(nil)
)
