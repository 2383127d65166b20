package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/vaughan-dsouza/taskboard/internal/db/migrations"
)

// PoolConfig holds connection pool tuning.
type PoolConfig struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

func Connect(ctx context.Context, dsn string, pool PoolConfig) (*sqlx.DB, error) {
	// Parse DSN → pgx config struct
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("db: failed to parse DSN: %w", err)
	}

	// Fail fast on startup if PG is unreachable
	cfg.ConnectTimeout = 5 * time.Second

	// Create sql.DB using pgx's stdlib adapter
	sqlDB := stdlib.OpenDB(*cfg)

	// Wrap in sqlx for named queries & struct scanning
	db := sqlx.NewDb(sqlDB, "pgx")

	db.SetMaxOpenConns(pool.MaxOpen)
	db.SetMaxIdleConns(pool.MaxIdle)
	db.SetConnMaxLifetime(pool.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db: failed to connect to Postgres: %w", err)
	}

	var tmp int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&tmp); err != nil {
		db.Close()
		return nil, fmt.Errorf("db: health check failed: %w", err)
	}

	return db, nil
}

// gooseUp is a seam for testing goose.UpContext.
var gooseUp = func(ctx context.Context, db *sqlx.DB) error {
	return goose.UpContext(ctx, db.DB, ".")
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("db: goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
