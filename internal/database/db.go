package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the libpq connection string
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// NewDB creates a new database connection
func NewDB(ctx context.Context, cfg Config, logger zerolog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger = logger.With().Str("component", "database").Logger()
	logger.Info().Str("database", cfg.Database).Msg("Connected to PostgreSQL")

	return &DB{Pool: pool, logger: logger}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("Database connection closed")
	}
}

// migrations run in order; each is idempotent
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS signals (
		id VARCHAR(36) PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		direction VARCHAR(8) NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		stop_loss DOUBLE PRECISION NOT NULL,
		take_profit DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
		risk_reward_ratio DOUBLE PRECISION NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		rating VARCHAR(2) NOT NULL,
		status VARCHAR(16) NOT NULL,
		position_size DOUBLE PRECISION NOT NULL DEFAULT 0,
		leverage INT NOT NULL DEFAULT 0,
		evidence JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_symbol ON signals(symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at DESC)`,
	// At most one ACTIVE signal per symbol and direction
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_signals_active ON signals(symbol, direction) WHERE status = 'ACTIVE'`,
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Int("count", len(migrations)).Msg("Running database migrations")

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Msg("Database migrations completed")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
