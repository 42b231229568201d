package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Ingestion batches and items",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS ingestion_batches (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					filename TEXT NOT NULL DEFAULT '',
					source_format TEXT NOT NULL DEFAULT 'unknown',
					status TEXT NOT NULL,
					file_hash TEXT NOT NULL DEFAULT '',
					file_size INTEGER NOT NULL DEFAULT 0,
					parser_version TEXT NOT NULL DEFAULT '',
					normalization_version TEXT NOT NULL DEFAULT '',
					rules_version TEXT NOT NULL DEFAULT '',
					taxonomy_version TEXT NOT NULL DEFAULT '',
					diagnostics TEXT NOT NULL DEFAULT '{}',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					committed_at DATETIME
				)`,
				`CREATE INDEX idx_batches_user ON ingestion_batches(user_id, created_at)`,

				`CREATE TABLE IF NOT EXISTS ingestion_items (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					batch_id TEXT NOT NULL REFERENCES ingestion_batches(id),
					row_index INTEGER NOT NULL,
					raw_payload TEXT NOT NULL,
					parsed_payload TEXT NOT NULL,
					fingerprint TEXT NOT NULL,
					row_hash TEXT NOT NULL,
					source_format TEXT NOT NULL,
					status TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(batch_id, row_index)
				)`,
				`CREATE INDEX idx_items_fingerprint ON ingestion_items(fingerprint)`,
				`CREATE INDEX idx_items_batch_status ON ingestion_items(batch_id, status)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Canonical transactions and evidence links",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					key TEXT NOT NULL,
					payment_date DATETIME NOT NULL,
					booking_date DATETIME,
					amount TEXT NOT NULL,
					currency TEXT NOT NULL DEFAULT '',
					desc_raw TEXT NOT NULL DEFAULT '',
					desc_norm TEXT NOT NULL DEFAULT '',
					alias_desc TEXT NOT NULL DEFAULT '',
					category1 TEXT NOT NULL DEFAULT '',
					category1_kind TEXT NOT NULL DEFAULT 'unset',
					category2 TEXT NOT NULL DEFAULT '',
					category3 TEXT NOT NULL DEFAULT '',
					leaf_id INTEGER,
					app_category_id INTEGER,
					app_category_name TEXT NOT NULL DEFAULT '',
					confidence INTEGER NOT NULL DEFAULT 0,
					needs_review BOOLEAN NOT NULL DEFAULT 0,
					conflict_flag BOOLEAN NOT NULL DEFAULT 0,
					candidates TEXT NOT NULL DEFAULT '[]',
					classified_by TEXT NOT NULL DEFAULT 'auto',
					resolution_status TEXT NOT NULL DEFAULT '',
					rule_id INTEGER,
					matched_keyword TEXT NOT NULL DEFAULT '',
					internal_transfer BOOLEAN NOT NULL DEFAULT 0,
					exclude_from_budget BOOLEAN NOT NULL DEFAULT 0,
					display BOOLEAN NOT NULL DEFAULT 1,
					manual_override BOOLEAN NOT NULL DEFAULT 0,
					rules_version TEXT NOT NULL DEFAULT '',
					taxonomy_version TEXT NOT NULL DEFAULT '',
					parser_version TEXT NOT NULL DEFAULT '',
					source_format TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, key)
				)`,
				`CREATE INDEX idx_transactions_user_review ON transactions(user_id, needs_review)`,
				`CREATE INDEX idx_transactions_leaf ON transactions(leaf_id)`,

				`CREATE TABLE IF NOT EXISTS transaction_evidence_links (
					transaction_id INTEGER NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
					ingestion_item_id INTEGER NOT NULL REFERENCES ingestion_items(id),
					is_primary BOOLEAN NOT NULL DEFAULT 0,
					match_confidence INTEGER NOT NULL DEFAULT 100,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(transaction_id, ingestion_item_id)
				)`,
				`CREATE INDEX idx_evidence_item ON transaction_evidence_links(ingestion_item_id)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Category taxonomy and classification rules",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS taxonomy_level1 (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					UNIQUE(user_id, name)
				)`,
				`CREATE TABLE IF NOT EXISTS taxonomy_level2 (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					level1_id INTEGER NOT NULL REFERENCES taxonomy_level1(id),
					name TEXT NOT NULL,
					UNIQUE(level1_id, name)
				)`,
				`CREATE TABLE IF NOT EXISTS taxonomy_leaf (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					level2_id INTEGER NOT NULL REFERENCES taxonomy_level2(id),
					name TEXT NOT NULL,
					UNIQUE(level2_id, name)
				)`,
				`CREATE TABLE IF NOT EXISTS app_categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					sort_order INTEGER NOT NULL DEFAULT 0,
					active BOOLEAN NOT NULL DEFAULT 1,
					UNIQUE(user_id, name)
				)`,
				`CREATE TABLE IF NOT EXISTS app_category_leaves (
					leaf_id INTEGER PRIMARY KEY REFERENCES taxonomy_leaf(id),
					app_category_id INTEGER NOT NULL REFERENCES app_categories(id)
				)`,

				`CREATE TABLE IF NOT EXISTS rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					key_words TEXT NOT NULL,
					key_words_negative TEXT NOT NULL DEFAULT '',
					category1 TEXT NOT NULL DEFAULT '',
					category2 TEXT NOT NULL DEFAULT '',
					category3 TEXT NOT NULL DEFAULT '',
					leaf_id INTEGER REFERENCES taxonomy_leaf(id),
					priority INTEGER NOT NULL DEFAULT 500,
					strict BOOLEAN NOT NULL DEFAULT 0,
					origin TEXT NOT NULL DEFAULT 'user',
					active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_rules_user_active ON rules(user_id, active, priority DESC)`,
			})
		},
	},
	{
		Version:     4,
		Description: "Alias assets",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS alias_assets (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					alias TEXT NOT NULL,
					key_words TEXT NOT NULL,
					logo_url TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, alias)
				)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
