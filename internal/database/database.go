// Package database opens the sqlx/MySQL pool used by the MySQL key-value
// backend.  The driver is go-sql-driver/mysql, which also speaks to MariaDB.
//
// Open pings before returning so a bad DSN fails during boot rather than on
// the first request.  Callers Close() the pool on shutdown.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// Pool sizes for the record store.  Records are tiny and traffic is mostly
// point reads from the router, so a small pool is plenty.
const (
	maxOpen     = 10
	maxIdle     = 5
	maxLifetime = 30 * time.Minute
	pingTimeout = 5 * time.Second
)

// Open parses dsn, forces the options the key-value table relies on, and
// returns a pinged *sqlx.DB.
func Open(dsn string) (*sqlx.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["charset"] = "utf8mb4"

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql %s: %w", cfg.Addr, err)
	}
	return db, nil
}
