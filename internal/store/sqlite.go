// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides join request persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS join_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			user_chat_id INTEGER NOT NULL DEFAULT 0,
			username TEXT,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT,
			submitted_at TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'new'
				CHECK (status IN ('new', 'pending_admin', 'pending_captcha', 'approved', 'declined')),
			is_flagged INTEGER NOT NULL DEFAULT 0,
			estimated_age_days INTEGER,
			risk_score INTEGER NOT NULL DEFAULT 0,
			risk_reasons TEXT,
			captcha_question TEXT,
			captcha_answer INTEGER,
			captcha_attempts INTEGER NOT NULL DEFAULT 0 CHECK (captcha_attempts >= 0),
			captcha_max_attempts INTEGER NOT NULL DEFAULT 3 CHECK (captcha_max_attempts >= 1),
			captcha_difficulty TEXT NOT NULL DEFAULT 'normal'
				CHECK (captcha_difficulty IN ('normal', 'hard')),
			decided_by INTEGER,
			decided_at TEXT,
			decision_note TEXT,
			UNIQUE(chat_id, user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_join_requests_status
			ON join_requests(status, submitted_at);

		CREATE INDEX IF NOT EXISTS idx_join_requests_decided
			ON join_requests(status, decided_at);

		CREATE TABLE IF NOT EXISTS guard_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		-- Audit log of moderation decisions and settings changes
		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id TEXT PRIMARY KEY,
			actor_id INTEGER NOT NULL,
			action TEXT NOT NULL,
			request_id INTEGER,
			ts TEXT NOT NULL,
			detail_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts);
		CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor_id);
		CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies schema migrations for existing databases.
// These are idempotent - safe to run multiple times.
func (s *SQLiteStore) runMigrations() error {
	// Migration: risk and challenge columns added after the first release.
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string // Query to check if migration is needed
		apply  string // Query to apply the migration
		column string // Column name for logging
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('join_requests') WHERE name = 'risk_score'`,
			apply:  `ALTER TABLE join_requests ADD COLUMN risk_score INTEGER NOT NULL DEFAULT 0`,
			column: "risk_score",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('join_requests') WHERE name = 'risk_reasons'`,
			apply:  `ALTER TABLE join_requests ADD COLUMN risk_reasons TEXT`,
			column: "risk_reasons",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('join_requests') WHERE name = 'captcha_max_attempts'`,
			apply:  `ALTER TABLE join_requests ADD COLUMN captcha_max_attempts INTEGER NOT NULL DEFAULT 3`,
			column: "captcha_max_attempts",
		},
		{
			check:  `SELECT 1 FROM pragma_table_info('join_requests') WHERE name = 'captcha_difficulty'`,
			apply:  `ALTER TABLE join_requests ADD COLUMN captcha_difficulty TEXT NOT NULL DEFAULT 'normal'`,
			column: "captcha_difficulty",
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			// Column already exists, skip
			continue
		}
		// Column doesn't exist, apply migration
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to join_requests: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", "join_requests")
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// nullString returns nil for empty strings, otherwise the string pointer
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return &s
}

// formatTime renders a timestamp in the canonical column format
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a timestamp stored by formatTime
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
