// Package postgres contains PostgreSQL implementations of the repository
// interfaces for multi-user deployments. Decimal columns are NUMERIC and are
// exchanged as text so no precision is lost in transit.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB holds the connection pool.
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds pool settings.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Connect opens a pool against cfg.DSN and verifies it with a ping.
func Connect(ctx context.Context, cfg Config, logger zerolog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}

	poolConfig.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Str("database", poolConfig.ConnConfig.Database).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("connected to postgres")

	return &DB{Pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// InTransaction runs fn in a transaction, committing when fn returns nil.
func (db *DB) InTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Migrate applies SchemaSQL. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("failed to apply postgres schema: %w", err)
	}
	db.logger.Debug().Msg("postgres schema applied")
	return nil
}
