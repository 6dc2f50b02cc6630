package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the initial schema migration.
//
// The schemes table carries both the current `days` column and the legacy
// `duration_days` column; rows may populate either, and normalization happens
// in SchemeRepository. The users.version column is the optimistic-concurrency
// token for every membership write.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id                   TEXT PRIMARY KEY,
			email                TEXT NOT NULL UNIQUE,
			password             TEXT NOT NULL,
			role                 TEXT NOT NULL DEFAULT 'user',
			identity             TEXT NOT NULL UNIQUE,
			alias                TEXT NOT NULL DEFAULT '',
			invite_code          TEXT NOT NULL UNIQUE,
			has_used_invite_code BOOLEAN NOT NULL DEFAULT FALSE,
			invited_by           TEXT,
			membership_level     INTEGER NOT NULL DEFAULT 0,
			membership_type      TEXT NOT NULL DEFAULT '',
			membership_name      TEXT NOT NULL DEFAULT '',
			membership_expire_at TIMESTAMPTZ,
			pts_limit            BIGINT NOT NULL DEFAULT 0,
			version              BIGINT NOT NULL DEFAULT 0,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_identity ON users(identity);
		CREATE INDEX IF NOT EXISTS idx_users_alias ON users(alias);
		CREATE INDEX IF NOT EXISTS idx_users_invite_code ON users(invite_code);

		CREATE TABLE IF NOT EXISTS orders (
			id         TEXT PRIMARY KEY,
			user_id    TEXT,
			identity   TEXT NOT NULL DEFAULT '',
			scheme_id  INTEGER NOT NULL,
			order_type TEXT NOT NULL,
			amount     BIGINT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			paid_at    TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

		CREATE TABLE IF NOT EXISTS schemes (
			scheme_id     INTEGER PRIMARY KEY,
			level         INTEGER NOT NULL,
			type          TEXT NOT NULL,
			name          TEXT NOT NULL,
			days          INTEGER,
			duration_days INTEGER,
			points        BIGINT NOT NULL DEFAULT 0,
			price         BIGINT NOT NULL DEFAULT 0
		);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
