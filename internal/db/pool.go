// Package db wraps the Postgres connection pool.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var SchemaSQL string

// Pool is the shared ConnectionPool every repository is built on top of.
type Pool struct {
	pool *pgxpool.Pool
}

// Open parses dbURL and connects, honoring DB_MAX_OPEN_CONNS /
// DB_MAX_IDLE_CONNS overrides. The pool defaults to 4 connections.
func Open(ctx context.Context, dbURL string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("db: parse url: %w", err)
	}

	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.MaxConns = int32(n)
		}
	} else {
		config.MaxConns = 4
	}
	if v := os.Getenv("DB_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.MinConns = int32(n)
		}
	}
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	return &Pool{pool: pool}, nil
}

func (p *Pool) Close() {
	p.pool.Close()
}

// Raw exposes the underlying pool for repositories that need direct
// Query/Exec access beyond WithTx.
func (p *Pool) Raw() *pgxpool.Pool {
	return p.pool
}

// WithTx runs fn inside a transaction, committing on a nil return and
// rolling back otherwise. The deferred Rollback is a no-op once Commit has
// already succeeded (pgx's documented behavior).
func (p *Pool) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("db: commit tx: %w", err)
	}
	return nil
}

func (p *Pool) Migrate(ctx context.Context, schemaSQL string) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
