// Package durable provides the Postgres-backed durable record store:
// rooms, players, items, monsters, NPCs, biomes, the coordinate map, and
// quest/badge/gold bookkeeping. It uses database/sql over the pgx/v5
// stdlib driver and golang-migrate with embedded SQL files.
package durable

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver for database/sql

	"github.com/worldforge/server/pkg/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Client wraps the pooled database connection used by every repository
// in this package.
type Client struct {
	db *stdsql.DB
}

// DB returns the underlying *sql.DB for health checks and ad-hoc queries.
func (c *Client) DB() *stdsql.DB {
	return c.db
}

// NewClientFromDB wraps an existing *sql.DB, used by tests that bring
// their own (testcontainers) database.
func NewClientFromDB(db *stdsql.DB) *Client {
	return &Client{db: db}
}

// NewClient opens a pooled connection to Postgres and applies pending
// migrations.
func NewClient(ctx context.Context, cfg config.DurableConfig) (*Client, error) {
	db, err := stdsql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("durable: open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("durable: ping database: %w", err)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("durable: migrate: %w", err)
	}

	return &Client{db: db}, nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

func runMigrations(db *stdsql.DB, databaseName string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, databaseName, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Do not call m.Close(): it would also close db via the shared
	// postgres.WithInstance() driver. Only the source side is ours to close.
	return sourceDriver.Close()
}

const statementTimeout = 10 * time.Second

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, statementTimeout)
}
