package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/notifycore/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
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

// ReplaceMessages swaps the cached messages of viewerID for msgs in a
// single transaction. The server list is authoritative, so rows it no
// longer returns are dropped.
func (s *SQLiteStore) ReplaceMessages(
	ctx context.Context,
	viewerID string,
	msgs []model.Message,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE owner_id = ?", viewerID); err != nil {
		return fmt.Errorf("clearing messages for %s: %w", viewerID, err)
	}

	const query = `
		INSERT OR REPLACE INTO messages (
			id, owner_id, sender_id, receiver_id,
			content, listing_id, is_read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing message insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		_, err = stmt.ExecContext(ctx,
			m.ID, viewerID, m.SenderID, m.ReceiverID,
			m.Content, m.ListingID, boolToInt(m.IsRead), m.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// ListMessages returns the cached messages of viewerID, newest first.
func (s *SQLiteStore) ListMessages(
	ctx context.Context,
	viewerID string,
) ([]model.Message, error) {
	var msgs []model.Message
	err := s.db.SelectContext(ctx, &msgs, `
		SELECT id, sender_id, receiver_id, content, listing_id, is_read, created_at
		FROM messages WHERE owner_id = ? ORDER BY created_at DESC, id`,
		viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	return msgs, nil
}

// ReplaceNotifications swaps the cached notifications of userID for ns.
func (s *SQLiteStore) ReplaceNotifications(
	ctx context.Context,
	userID string,
	ns []model.SystemNotification,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM system_notifications WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing notifications for %s: %w", userID, err)
	}

	const query = `
		INSERT OR REPLACE INTO system_notifications (
			id, user_id, type, title, message,
			is_read, related_id, link_url, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing notification insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range ns {
		_, err = stmt.ExecContext(ctx,
			n.ID, userID, n.Type, n.Title, n.Message,
			boolToInt(n.IsRead), n.RelatedID, n.LinkURL, n.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting notification %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// ListNotifications returns the cached notifications of userID, newest first.
func (s *SQLiteStore) ListNotifications(
	ctx context.Context,
	userID string,
) ([]model.SystemNotification, error) {
	var ns []model.SystemNotification
	err := s.db.SelectContext(ctx, &ns, `
		SELECT id, user_id, type, title, message, is_read, related_id, link_url, created_at
		FROM system_notifications WHERE user_id = ? ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	return ns, nil
}

// GetValue returns the value stored under key, or ErrNotFound.
func (s *SQLiteStore) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM kv WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting value %q: %w", key, err)
	}
	return value, nil
}

// SetValue stores value under key, replacing any previous value.
func (s *SQLiteStore) SetValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting value %q: %w", key, err)
	}
	return nil
}

// DeleteValue removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) DeleteValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting value %q: %w", key, err)
	}
	return nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
