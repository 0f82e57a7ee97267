package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// schema is applied by EnsureSchema.  MEDIUMBLOB leaves room for records far
// larger than the platform writes today.
const schema = `CREATE TABLE IF NOT EXISTS kv_entry (
	k VARCHAR(255) NOT NULL PRIMARY KEY,
	v MEDIUMBLOB NOT NULL
)`

// SQL is a Store over a MySQL table.  Glob patterns are translated to LIKE,
// so `*` and `?` work while `[...]` classes are matched literally.
type SQL struct {
	db *sqlx.DB
}

// NewSQL wraps an open pool.  Close closes the pool.
func NewSQL(db *sqlx.DB) *SQL { return &SQL{db: db} }

// EnsureSchema creates the kv_entry table when missing.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("kv mysql schema: %w", err)
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.GetContext(ctx, &v, `SELECT v FROM kv_entry WHERE k = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv mysql get %s: %w", key, err)
	}
	return v, nil
}

func (s *SQL) Set(ctx context.Context, key string, val []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entry (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)`,
		key, val)
	if err != nil {
		return fmt.Errorf("kv mysql set %s: %w", key, err)
	}
	return nil
}

func (s *SQL) SetNX(ctx context.Context, key string, val []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT IGNORE INTO kv_entry (k, v) VALUES (?, ?)`, key, val)
	if err != nil {
		return false, fmt.Errorf("kv mysql setnx %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("kv mysql setnx %s: %w", key, err)
	}
	return n == 1, nil
}

func (s *SQL) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM kv_entry WHERE k IN (?)`, keys)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), args...); err != nil {
		return fmt.Errorf("kv mysql del: %w", err)
	}
	return nil
}

func (s *SQL) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := s.db.SelectContext(ctx, &keys,
		`SELECT k FROM kv_entry WHERE k LIKE ? ESCAPE '!' ORDER BY k`, globToLike(pattern))
	if err != nil {
		return nil, fmt.Errorf("kv mysql keys %s: %w", pattern, err)
	}
	return keys, nil
}

type kvRow struct {
	K string `db:"k"`
	V []byte `db:"v"`
}

func (s *SQL) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT k, v FROM kv_entry WHERE k IN (?)`, keys)
	if err != nil {
		return nil, err
	}
	var rows []kvRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("kv mysql mget: %w", err)
	}

	byKey := make(map[string][]byte, len(rows))
	for _, r := range rows {
		byKey[r.K] = r.V
	}
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out, nil
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQL) Close() error                   { return s.db.Close() }

// globToLike converts a Redis glob to a LIKE pattern using '!' as the
// escape character.
func globToLike(p string) string {
	var b strings.Builder
	for _, r := range p {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_', '!':
			b.WriteByte('!')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
