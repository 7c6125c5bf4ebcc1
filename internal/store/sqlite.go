package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/toannc04966/pastel-inbox/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// GetPreference decodes the stored JSON value for key into out. A
// missing key or an undecodable value both report found=false; corrupt
// rows are tolerated rather than failing the caller.
func (s *SQLiteStore) GetPreference(
	ctx context.Context,
	key string,
	out interface{},
) (bool, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw,
		"SELECT value FROM preferences WHERE key = ?", key,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading preference %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, nil
	}
	return true, nil
}

// SetPreference stores value as JSON under key.
func (s *SQLiteStore) SetPreference(
	ctx context.Context,
	key string,
	value interface{},
) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding preference %q: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP`,
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("writing preference %q: %w", key, err)
	}
	return nil
}

// DeletePreference removes a preference key.
func (s *SQLiteStore) DeletePreference(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM preferences WHERE key = ?", key,
	); err != nil {
		return fmt.Errorf("deleting preference %q: %w", key, err)
	}
	return nil
}

// MarkRead records the given message ids as read. Already-read ids are
// left untouched so the original read time survives refetches.
func (s *SQLiteStore) MarkRead(ctx context.Context, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		"INSERT OR IGNORE INTO read_messages (message_id) VALUES (?)",
	)
	if err != nil {
		return fmt.Errorf("preparing read-state insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range messageIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("marking message %s read: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing read state: %w", err)
	}
	return nil
}

// ReadMessageIDs returns the full set of message ids marked read.
func (s *SQLiteStore) ReadMessageIDs(ctx context.Context) (map[string]bool, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, "SELECT message_id FROM read_messages")
	if err != nil {
		return nil, fmt.Errorf("reading read-message set: %w", err)
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// recentEmailRow is the database shape of a recent-email entry.
type recentEmailRow struct {
	Email        string    `db:"email"`
	MessageCount int       `db:"message_count"`
	LastAccessed time.Time `db:"last_accessed"`
}

// RecentEmails returns the recent-email history for a domain in
// most-recently-used order.
func (s *SQLiteStore) RecentEmails(
	ctx context.Context,
	domain string,
) ([]model.RecentEmail, error) {
	var rows []recentEmailRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT email, message_count, last_accessed
		FROM recent_emails
		WHERE domain = ?
		ORDER BY last_accessed DESC
		LIMIT ?`,
		domain, model.MaxRecentEmails,
	)
	if err != nil {
		return nil, fmt.Errorf("reading recent emails for %s: %w", domain, err)
	}

	history := make([]model.RecentEmail, len(rows))
	for i, r := range rows {
		history[i] = model.RecentEmail{
			Email:        r.Email,
			MessageCount: r.MessageCount,
			LastAccessed: r.LastAccessed,
		}
	}
	return history, nil
}

// RecordRecentEmail upserts an address into the domain's history,
// de-duplicating case-insensitively and pruning beyond the cap.
func (s *SQLiteStore) RecordRecentEmail(
	ctx context.Context,
	domain string,
	entry model.RecentEmail,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recent_emails (domain, email_key, email, message_count, last_accessed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(domain, email_key) DO UPDATE SET
			email = excluded.email,
			message_count = excluded.message_count,
			last_accessed = excluded.last_accessed`,
		domain, strings.ToLower(entry.Email), entry.Email,
		entry.MessageCount, entry.LastAccessed,
	)
	if err != nil {
		return fmt.Errorf("recording recent email %s: %w", entry.Email, err)
	}

	// Prune anything past the per-domain cap.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM recent_emails
		WHERE domain = ? AND email_key NOT IN (
			SELECT email_key FROM recent_emails
			WHERE domain = ?
			ORDER BY last_accessed DESC
			LIMIT ?
		)`,
		domain, domain, model.MaxRecentEmails,
	)
	if err != nil {
		return fmt.Errorf("pruning recent emails for %s: %w", domain, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing recent email: %w", err)
	}
	return nil
}

// SaveDraft stores the compose draft for a user, replacing any
// previous draft in the single slot.
func (s *SQLiteStore) SaveDraft(
	ctx context.Context,
	userID string,
	draft model.ComposeDraft,
) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encoding draft: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO drafts (user_id, payload, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			payload = excluded.payload,
			saved_at = excluded.saved_at`,
		userID, string(data), draft.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("saving draft for %s: %w", userID, err)
	}
	return nil
}

// GetDraft returns the stored draft for a user, or nil when no draft
// exists or the stored payload is corrupt.
func (s *SQLiteStore) GetDraft(
	ctx context.Context,
	userID string,
) (*model.ComposeDraft, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw,
		"SELECT payload FROM drafts WHERE user_id = ?", userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading draft for %s: %w", userID, err)
	}

	var draft model.ComposeDraft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, nil
	}
	return &draft, nil
}

// DeleteDraft discards the stored draft for a user.
func (s *SQLiteStore) DeleteDraft(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM drafts WHERE user_id = ?", userID,
	); err != nil {
		return fmt.Errorf("deleting draft for %s: %w", userID, err)
	}
	return nil
}

// GetRateLimit returns the persisted rate-limit snapshot for a user.
// A missing or corrupt row yields the zero state.
func (s *SQLiteStore) GetRateLimit(
	ctx context.Context,
	userID string,
) (model.RateLimitState, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw,
		"SELECT payload FROM rate_limits WHERE user_id = ?", userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RateLimitState{}, nil
	}
	if err != nil {
		return model.RateLimitState{}, fmt.Errorf("reading rate limit for %s: %w", userID, err)
	}

	var state model.RateLimitState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return model.RateLimitState{}, nil
	}
	return state, nil
}

// SetRateLimit persists the rate-limit snapshot for a user.
func (s *SQLiteStore) SetRateLimit(
	ctx context.Context,
	userID string,
	state model.RateLimitState,
) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding rate limit: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rate_limits (user_id, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP`,
		userID, string(data),
	)
	if err != nil {
		return fmt.Errorf("writing rate limit for %s: %w", userID, err)
	}
	return nil
}
