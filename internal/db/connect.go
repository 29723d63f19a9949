// Package db provides the shared Postgres pool abstraction and connection helpers.
package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Connect opens a pgxpool for dsn and verifies it with a ping.
// name identifies the database in error messages (e.g. "registry", "dime").
func Connect(ctx context.Context, name, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, eris.Errorf("db: no database url configured for %s", name)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "db: create %s connection pool", name)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrapf(err, "db: ping %s database", name)
	}

	return pool, nil
}

// IsNoRows reports whether err is (or wraps) pgx.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
