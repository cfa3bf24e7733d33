// Package database opens the PostgreSQL pool and applies schema migrations.
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolSize bounds the connection pool. Zero MaxConns keeps pgx's default.
type PoolSize struct {
	MaxConns int
	MinConns int
}

type DB struct {
	pool *pgxpool.Pool
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// New connects to databaseURL and pings before returning.
func New(ctx context.Context, databaseURL string, size PoolSize) (*DB, error) {
	cfg, err := poolConfig(databaseURL, size)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("database connected",
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
		"host", cfg.ConnConfig.Host,
		"database", cfg.ConnConfig.Database,
	)
	return &DB{pool: pool}, nil
}

func poolConfig(databaseURL string, size PoolSize) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if size.MaxConns > 0 {
		cfg.MaxConns = int32(size.MaxConns)
	}
	if size.MinConns > 0 {
		cfg.MinConns = int32(min(size.MinConns, int(cfg.MaxConns)))
	}
	return cfg, nil
}

// Ping backs the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *DB) Close() {
	db.pool.Close()
	slog.Info("database connection closed")
}
