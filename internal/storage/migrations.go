package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
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
				`CREATE TABLE IF NOT EXISTS inbox_items (
					id TEXT PRIMARY KEY,
					team_id TEXT NOT NULL,
					display_name TEXT,
					amount TEXT,
					currency TEXT,
					base_amount TEXT,
					base_currency TEXT,
					date DATETIME NOT NULL,
					kind TEXT NOT NULL,
					status TEXT NOT NULL,
					matched_transaction_id TEXT,
					embedding TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_inbox_items_team_status ON inbox_items(team_id, status)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					team_id TEXT NOT NULL,
					hash TEXT UNIQUE NOT NULL,
					date DATETIME NOT NULL,
					name TEXT NOT NULL,
					account_id TEXT,
					amount TEXT NOT NULL,
					currency TEXT NOT NULL,
					base_amount TEXT,
					base_currency TEXT,
					embedding TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_transactions_team_date ON transactions(team_id, date)`,

				`CREATE TABLE IF NOT EXISTS match_suggestions (
					id TEXT PRIMARY KEY,
					inbox_item_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					confidence REAL NOT NULL,
					amount_score REAL NOT NULL DEFAULT 0,
					date_score REAL NOT NULL DEFAULT 0,
					similarity_score REAL NOT NULL DEFAULT 0,
					scored_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (inbox_item_id) REFERENCES inbox_items(id),
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,
				`CREATE INDEX idx_match_suggestions_item ON match_suggestions(inbox_item_id)`,

				`CREATE TABLE IF NOT EXISTS confirmed_matches (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					inbox_item_id TEXT NOT NULL UNIQUE,
					transaction_id TEXT NOT NULL UNIQUE,
					confirmed_by TEXT NOT NULL,
					confirmed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (inbox_item_id) REFERENCES inbox_items(id),
					FOREIGN KEY (transaction_id) REFERENCES transactions(id)
				)`,
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
		Description: "Add match event history for auditing",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS match_events (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					inbox_item_id TEXT NOT NULL,
					transaction_id TEXT NOT NULL,
					event_type TEXT NOT NULL,
					actor TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_match_events_transaction ON match_events(transaction_id)`,
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
		Description: "Index candidate lookups by team and date",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_inbox_items_team_date ON inbox_items(team_id, date)`)
			return err
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

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
