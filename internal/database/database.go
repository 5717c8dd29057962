// internal/database/database.go

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SoilMonitorAPI/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Database struct {
	DB  *sqlx.DB
	cfg *config.DatabaseConfig
}

func New(cfg *config.DatabaseConfig) (*Database, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		DB:  db,
		cfg: cfg,
	}, nil
}

func (d *Database) Close() error {
	return d.DB.Close()
}

func (d *Database) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := d.DB.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

func (d *Database) Stats() sql.DBStats {
	return d.DB.Stats()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS readings (
		id            BIGSERIAL PRIMARY KEY,
		sensor_id     TEXT NOT NULL,
		location_name TEXT NOT NULL DEFAULT '',
		location_lat  DOUBLE PRECISION NOT NULL DEFAULT 0,
		location_lng  DOUBLE PRECISION NOT NULL DEFAULT 0,
		soil_moisture INTEGER NOT NULL,
		temperature   DOUBLE PRECISION NOT NULL,
		humidity      INTEGER NOT NULL,
		ph_level      DOUBLE PRECISION NOT NULL,
		nitrogen      INTEGER NOT NULL,
		phosphorus    INTEGER NOT NULL,
		potassium     INTEGER NOT NULL,
		battery_level INTEGER NOT NULL,
		timestamp     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings (timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_readings_sensor_timestamp ON readings (sensor_id, timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id              BIGSERIAL PRIMARY KEY,
		type            TEXT NOT NULL CHECK (type IN ('critical', 'warning')),
		title           TEXT NOT NULL,
		message         TEXT NOT NULL,
		sensor_id       TEXT NOT NULL,
		value           DOUBLE PRECISION NOT NULL,
		threshold_value DOUBLE PRECISION,
		threshold_range TEXT,
		location        TEXT NOT NULL DEFAULT '',
		is_read         BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMPTZ NOT NULL,
		acknowledged_at TIMESTAMPTZ,
		CHECK (is_read OR acknowledged_at IS NULL)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_unread ON alerts (is_read) WHERE NOT is_read`,
}

// Migrate creates the readings and alerts tables if they do not exist yet.
func (d *Database) Migrate(ctx context.Context) error {
	tx, err := d.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
