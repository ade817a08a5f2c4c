// Package infrastructure provides database connection pool setup.
//
// A single shared pgxpool backs every repository so the ledger's
// read-check-write sequences run against one transactional store.
package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"domainhub.io/hubd/internal/config"
	"domainhub.io/hubd/internal/pkg/logger"
)

// NewPool creates the shared PostgreSQL connection pool.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = time.Minute

	// Set UTC timezone on each new connection (pgxpool best practice)
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET timezone = 'UTC'")
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("Database connection pool created",
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns),
	)

	return pool, nil
}

// schema holds the DDL for all hub tables. Idempotent: every statement
// is guarded with IF NOT EXISTS.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS server_groups (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		color       TEXT NOT NULL DEFAULT '',
		created_by  TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS servers (
		id                BIGSERIAL PRIMARY KEY,
		name              TEXT NOT NULL UNIQUE,
		ip_address        TEXT NOT NULL,
		password          TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL DEFAULT 'free',
		capacity_mode     TEXT NOT NULL DEFAULT 'low',
		max_domains       INTEGER NOT NULL DEFAULT 5,
		current_domains   INTEGER NOT NULL DEFAULT 0,
		is_central_config BOOLEAN NOT NULL DEFAULT true,
		individual_config TEXT NOT NULL DEFAULT '',
		central_config    TEXT NOT NULL DEFAULT '',
		description       TEXT NOT NULL DEFAULT '',
		group_id          BIGINT REFERENCES server_groups(id) ON DELETE SET NULL,
		created_by        TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		locked_by         TEXT NOT NULL DEFAULT '',
		locked_at         TIMESTAMPTZ,
		CONSTRAINT servers_counter_bounds CHECK (current_domains >= 0 AND current_domains <= max_domains)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_servers_status ON servers (status)`,
	`CREATE INDEX IF NOT EXISTS idx_servers_group ON servers (group_id)`,
	`CREATE TABLE IF NOT EXISTS domains (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		status      TEXT NOT NULL DEFAULT 'free',
		description TEXT NOT NULL DEFAULT '',
		tags        JSONB NOT NULL DEFAULT '[]',
		created_by  TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		locked_by   TEXT NOT NULL DEFAULT '',
		locked_at   TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_domains_status ON domains (status)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id          BIGSERIAL PRIMARY KEY,
		domain_id   BIGINT NOT NULL REFERENCES domains(id),
		server_id   BIGINT NOT NULL REFERENCES servers(id),
		assigned_by TEXT NOT NULL,
		assigned_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT uq_domain_assignment UNIQUE (domain_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_server ON assignments (server_id)`,
}

// Migrate creates the hub tables. Development convenience; production
// deployments run the same DDL through their migration tooling.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	logger.Info("Schema migration completed", zap.Int("statements", len(schema)))
	return nil
}
