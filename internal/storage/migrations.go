package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS raw_records (
					natural_key TEXT PRIMARY KEY,
					as_of_date DATETIME NOT NULL,
					amount TEXT NOT NULL,
					direction TEXT NOT NULL,
					raw_description TEXT NOT NULL,
					source_tag TEXT NOT NULL,
					applied_flag INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_raw_records_source ON raw_records(source_tag, applied_flag)`,
				`CREATE INDEX idx_raw_records_date ON raw_records(as_of_date)`,

				`CREATE TABLE IF NOT EXISTS canonical_mappings (
					fingerprint TEXT PRIMARY KEY,
					client_id INTEGER,
					company_id TEXT NOT NULL DEFAULT '',
					company_name TEXT NOT NULL DEFAULT '',
					customer_id TEXT NOT NULL DEFAULT '',
					customer_name TEXT NOT NULL DEFAULT '',
					curated INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					curated_at DATETIME
				)`,

				`CREATE TABLE IF NOT EXISTS ledger_postings (
					natural_key TEXT PRIMARY KEY,
					client_id INTEGER NOT NULL,
					posted_amount TEXT NOT NULL,
					memo TEXT,
					source_tag TEXT NOT NULL,
					posted_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_ledger_postings_client ON ledger_postings(client_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add customer master table for curation suggestions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS customers (
					client_id INTEGER PRIMARY KEY,
					customer_id TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL DEFAULT '',
					company_name TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX idx_customers_customer_id ON customers(customer_id)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Index uncurated mappings for worklist queries",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_mappings_curated ON canonical_mappings(curated)`)
			return err
		},
	},
}

// Migrate applies any outstanding schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	return nil
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	return version, err
}
