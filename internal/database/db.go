package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Sentinel errors shared by all record operations.
var (
	// ErrNotFound means no record matched the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrNotOwner means the record exists but belongs to someone else.
	ErrNotOwner = errors.New("not the record owner")
	// ErrBadCursor means a pagination cursor could not be decoded.
	ErrBadCursor = errors.New("malformed cursor")
)

// All timestamps are stored as epoch milliseconds (INTEGER). This keeps
// cursor comparisons and window arithmetic free of string parsing.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    subject TEXT UNIQUE,
    username TEXT UNIQUE NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    password_hash TEXT,
    display_name TEXT NOT NULL DEFAULT '',
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    last_login INTEGER
);

CREATE TABLE IF NOT EXISTS user_sessions (
    token TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    last_activity INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires ON user_sessions(expires_at);

CREATE TABLE IF NOT EXISTS sso_states (
    state TEXT PRIMARY KEY,
    nonce TEXT NOT NULL,
    return_url TEXT NOT NULL DEFAULT '',
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS images (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL REFERENCES users(id),
    visibility TEXT NOT NULL CHECK (visibility IN ('public', 'unlisted')),
    storage_key TEXT UNIQUE NOT NULL,
    public_url TEXT NOT NULL,
    thumbnail_url TEXT,
    content_type TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    aspect_ratio REAL,
    prompt TEXT NOT NULL,
    negative_prompt TEXT,
    model TEXT NOT NULL,
    seed INTEGER,
    params_kind TEXT NOT NULL,
    params_json TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_images_owner_created ON images(owner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_images_owner_model_created ON images(owner_id, model, created_at);
CREATE INDEX IF NOT EXISTS idx_images_owner_vis_created ON images(owner_id, visibility, created_at);
CREATE INDEX IF NOT EXISTS idx_images_owner_vis_model_created ON images(owner_id, visibility, model, created_at);
CREATE INDEX IF NOT EXISTS idx_images_vis_created ON images(visibility, created_at);

CREATE TABLE IF NOT EXISTS reference_images (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL REFERENCES users(id),
    storage_key TEXT UNIQUE NOT NULL,
    public_url TEXT NOT NULL,
    thumbnail_url TEXT,
    content_type TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reference_owner_created ON reference_images(owner_id, created_at);

CREATE TABLE IF NOT EXISTS prompts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    owner_id INTEGER NOT NULL REFERENCES users(id),
    text TEXT NOT NULL,
    negative_text TEXT,
    content_hash TEXT NOT NULL,
    use_count INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL,
    last_used_at INTEGER NOT NULL,
    UNIQUE(owner_id, content_hash)
);

CREATE INDEX IF NOT EXISTS idx_prompts_owner_used ON prompts(owner_id, last_used_at);

CREATE TABLE IF NOT EXISTS rate_limits (
    key TEXT PRIMARY KEY,
    endpoint TEXT NOT NULL,
    request_count INTEGER NOT NULL,
    window_start INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rate_limits_window ON rate_limits(window_start);
`

// Initialize opens the SQLite database, applies pragmas, and creates the schema.
func Initialize(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL mode for better concurrency between readers and the writer
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// RunMigrations creates the schema. Safe to run repeatedly.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// millis converts a time to epoch milliseconds for storage.
func millis(t time.Time) int64 {
	return t.UnixMilli()
}

// fromMillis converts stored epoch milliseconds back to a time.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
