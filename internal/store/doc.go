// Package store provides persistent storage for joinguard using SQLite.
//
// # Architecture
//
// A single Store interface covers the whole moderation lifecycle. The
// SQLiteStore implementation keeps one row per applicant per chat and drives
// every state transition through a guarded UPDATE: the statement names the
// lifecycle state it expects, and zero affected rows means another writer got
// there first. Callers receive ErrStateConflict and are expected to re-read
// instead of retrying blindly. This is what makes concurrent reviewer taps,
// challenge answers and sweeper expiries safe without table locks.
//
// # Data Models
//
//   - JoinRequest: One applicant's attempt to enter a guarded chat, from
//     submission through risk assessment, routing and final decision
//   - AuditEntry: Who decided what about which request, with JSON detail
//   - Guard settings: Key/value knobs togglable at runtime (moderation mode)
//
// Lifecycle states are new -> pending_admin | pending_captcha ->
// approved | declined. The terminal states are immutable; only a fresh
// application from the same user resets the row (UpsertJoinRequest).
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Timestamps are stored as RFC3339 UTC text. Risk reasons are a JSON array.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrStateConflict: A guarded transition found the row in another state
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests:
//
//	store := store.NewMockStore()
//	// store implements Store with the same transition guards
//
// Use NewSQLiteStore with a t.TempDir() path for integration tests with
// real SQLite.
//
// # Migrations
//
// Migrations run automatically on store initialization. Columns added after
// the first release are backfilled via pragma_table_info checks.
package store
