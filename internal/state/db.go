// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the lib/pq connection string.
func (cfg DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	db, err := Open(cfg.DSN())
	if err != nil {
		return err
	}
	DB = db
	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// Open connects to dsn and checks the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS vault_parameters (
		params_id SERIAL PRIMARY KEY,
		version INTEGER NOT NULL DEFAULT 1,
		config_name VARCHAR(255) NOT NULL DEFAULT 'default',
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		performance_fee_bps INTEGER NOT NULL,
		compound_fee_bps INTEGER NOT NULL,
		min_compound_amount NUMERIC(78, 0) NOT NULL,
		auto_compound_enabled BOOLEAN NOT NULL,
		risk_profile VARCHAR(16) NOT NULL,
		weights JSONB NOT NULL,
		CONSTRAINT uq_vault_parameters_config_version UNIQUE (config_name, version)
	);
	CREATE INDEX IF NOT EXISTS idx_vault_parameters_config_active ON vault_parameters(config_name, is_active, activated_at DESC);

	CREATE TABLE IF NOT EXISTS vault_events (
		event_id UUID PRIMARY KEY,
		tx_id UUID NOT NULL,
		kind VARCHAR(32) NOT NULL,
		emitter VARCHAR(128) NOT NULL,
		sender VARCHAR(128) NOT NULL,
		owner VARCHAR(128),
		receiver VARCHAR(128),
		denom VARCHAR(128) NOT NULL,
		assets NUMERIC(78, 0) NOT NULL,
		shares NUMERIC(78, 0) NOT NULL,
		detail TEXT,
		event_time TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vault_events_time ON vault_events(event_time DESC);
	CREATE INDEX IF NOT EXISTS idx_vault_events_kind ON vault_events(kind);
	CREATE INDEX IF NOT EXISTS idx_vault_events_sender ON vault_events(sender);
	CREATE INDEX IF NOT EXISTS idx_vault_events_tx ON vault_events(tx_id);

	CREATE TABLE IF NOT EXISTS cycle_snapshots (
		snapshot_id SERIAL PRIMARY KEY,
		cycle_number INTEGER NOT NULL,
		cycle_id UUID NOT NULL UNIQUE,
		snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,

		-- Pre-Action State
		initial_state JSONB NOT NULL,

		-- What the keeper did
		actions TEXT[],

		-- The Outcome
		final_state JSONB NOT NULL,
		final_share_price DOUBLE PRECISION NOT NULL,
		profit_assets NUMERIC(78, 0) NOT NULL,
		fee_shares NUMERIC(78, 0) NOT NULL,
		compounded NUMERIC(78, 0) NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_timestamp ON cycle_snapshots(snapshot_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_cycle ON cycle_snapshots(cycle_number DESC);

	-- Cycle counter table for persistent global cycle tracking
	CREATE TABLE IF NOT EXISTS cycle_counter (
		id INTEGER PRIMARY KEY DEFAULT 1,
		current_cycle INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT single_row_check CHECK (id = 1)
	);

	-- Insert initial row if it doesn't exist
	INSERT INTO cycle_counter (id, current_cycle)
	VALUES (1, 0)
	ON CONFLICT (id) DO NOTHING;
`

// dropSQL lists every table EnsureSchema creates, for DropSchema.
const dropSQL = `
	DROP TABLE IF EXISTS vault_events CASCADE;
	DROP TABLE IF EXISTS cycle_snapshots CASCADE;
	DROP TABLE IF EXISTS cycle_counter CASCADE;
	DROP TABLE IF EXISTS vault_parameters CASCADE;
`

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return ErrNotInitialized
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// DropSchema removes every vault table. Used by scripts/reset_db.go.
func DropSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return ErrNotInitialized
	}
	if _, err := db.ExecContext(ctx, dropSQL); err != nil {
		return fmt.Errorf("failed to drop vault tables: %w", err)
	}
	log.Warn().Msg("Dropped all vault tables")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
