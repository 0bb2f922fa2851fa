// Package store persists entitlements, redemptions and the offer catalog
// in SQLite. Timestamps are stored as UTC RFC3339 text, money as canonical
// two-decimal text. Every lifecycle change is a compare-and-swap UPDATE so
// concurrent writers cannot double-apply a transition.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The sqlite driver serializes writes; a second connection would only
	// add lock contention.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'student',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS merchants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		geo TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS offers (
		id TEXT PRIMARY KEY,
		merchant_id TEXT NOT NULL REFERENCES merchants(id),
		category_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		offer_type TEXT NOT NULL CHECK (offer_type IN ('percentage','bogo','bundle')),
		discount_value TEXT NOT NULL DEFAULT '',
		original_price TEXT,
		discounted_price TEXT,
		valid_from TEXT,
		valid_until TEXT,
		time_from TEXT NOT NULL DEFAULT '',
		time_until TEXT NOT NULL DEFAULT '',
		valid_weekdays TEXT NOT NULL DEFAULT '',
		max_total_claims INTEGER NOT NULL DEFAULT 0,
		total_claims INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		is_featured INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_offers_merchant ON offers(merchant_id);

	CREATE TABLE IF NOT EXISTS entitlements (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		offer_id TEXT NOT NULL REFERENCES offers(id),
		state TEXT NOT NULL CHECK (state IN ('active','pending_confirmation','used','expired','voided')),
		claimed_at TEXT NOT NULL,
		claim_day TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		used_at TEXT,
		voided_at TEXT,
		device_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One live entitlement per user, offer and local calendar day.
	-- Voided rows are excluded so a void frees the day slot.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entitlements_daily_claim
		ON entitlements(user_id, offer_id, claim_day)
		WHERE state != 'voided';

	CREATE INDEX IF NOT EXISTS idx_entitlements_user_state
		ON entitlements(user_id, state);
	CREATE INDEX IF NOT EXISTS idx_entitlements_sweep
		ON entitlements(state, expires_at);

	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		entitlement_id TEXT NOT NULL UNIQUE REFERENCES entitlements(id),
		merchant_id TEXT NOT NULL REFERENCES merchants(id),
		offer_id TEXT NOT NULL REFERENCES offers(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		validator_id TEXT,
		total_bill TEXT NOT NULL,
		discount_amount TEXT NOT NULL,
		final_amount TEXT NOT NULL,
		offer_type TEXT NOT NULL,
		redeemed_at TEXT NOT NULL,
		is_voided INTEGER NOT NULL DEFAULT 0,
		voided_at TEXT,
		void_reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_user
		ON redemptions(user_id, is_voided);
	CREATE INDEX IF NOT EXISTS idx_redemptions_validator
		ON redemptions(validator_id, redeemed_at);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		user_id TEXT,
		offer_id TEXT,
		payload TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analytics_type_time
		ON analytics_events(event_type, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ── helpers ──

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isDailyClaimConflict(err error) bool {
	return isUniqueConstraintError(err) &&
		strings.Contains(err.Error(), "user_id") &&
		strings.Contains(err.Error(), "claim_day")
}
