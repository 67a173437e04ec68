package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS terminal_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresKV stores values in a PostgreSQL table.
type PostgresKV struct {
	pool *pgxpool.Pool
}

// ConnectPostgres establishes a connection pool and ensures the table exists.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresKV, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create terminal_kv: %w", err)
	}

	return &PostgresKV{pool: pool}, nil
}

func (p *PostgresKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM terminal_kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, &Error{Op: "get", Key: key, Message: "query failed", Cause: err}
	}
	return value, true, nil
}

func (p *PostgresKV) Set(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO terminal_kv (key, value)
		 VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()`,
		key, value,
	)
	if err != nil {
		return &Error{Op: "set", Key: key, Message: "upsert failed", Cause: err}
	}
	return nil
}

// Close closes the connection pool
func (p *PostgresKV) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
