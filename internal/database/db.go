// Package database is the Postgres-backed persistence layer for player
// profiles and settlement idempotency records.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/squadup-gg/squadup/internal/config"
)

// Connect builds a pgx pool from config and verifies it with a ping.
func Connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresDatabase,
	)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the tables this service owns if they do not exist.
// The settlements table is the idempotency ledger for outcome reports.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		email TEXT UNIQUE,
		password TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL,
		avatar TEXT NOT NULL DEFAULT '',
		is_ephemeral BOOLEAN NOT NULL DEFAULT FALSE,
		score INT NOT NULL DEFAULT 50,
		matches_played INT NOT NULL DEFAULT 0,
		mvps INT NOT NULL DEFAULT 0,
		perfect_behavior_streak INT NOT NULL DEFAULT 0,
		match_history JSONB NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS settlements (
		match_id UUID NOT NULL,
		player_id UUID NOT NULL,
		settled_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (match_id, player_id)
	);
	`
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
