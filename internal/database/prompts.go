package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nferro/atelier/internal/models"
)

// SavePrompt adds a prompt-library entry, deduplicating by content hash:
// when the owner already has an entry with the same normalized content,
// its use_count and last_used_at are bumped instead of inserting a
// duplicate. Returns the resulting entry either way.
func SavePrompt(db *sql.DB, ownerID int64, text string, negative *string) (*models.Prompt, error) {
	if text == "" {
		return nil, fmt.Errorf("prompt text cannot be empty")
	}

	hash := models.PromptContentHash(text, negative)
	now := time.Now().UTC()

	// The UNIQUE(owner_id, content_hash) constraint makes the upsert a
	// single statement; SQLite serializes the write.
	query := `
		INSERT INTO prompts (owner_id, text, negative_text, content_hash, use_count, created_at, last_used_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(owner_id, content_hash) DO UPDATE SET
			use_count = use_count + 1,
			last_used_at = excluded.last_used_at
	`
	if _, err := db.Exec(query, ownerID, text, negative, hash, millis(now), millis(now)); err != nil {
		return nil, fmt.Errorf("failed to save prompt: %w", err)
	}

	return getPromptByHash(db, ownerID, hash)
}

func getPromptByHash(db *sql.DB, ownerID int64, hash string) (*models.Prompt, error) {
	query := `
		SELECT id, owner_id, text, negative_text, content_hash, use_count, created_at, last_used_at
		FROM prompts WHERE owner_id = ? AND content_hash = ?
	`
	p, err := scanPrompt(db.QueryRow(query, ownerID, hash))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query prompt: %w", err)
	}
	return p, nil
}

func scanPrompt(row rowScanner) (*models.Prompt, error) {
	p := &models.Prompt{}
	var negative sql.NullString
	var createdAt, lastUsedAt int64

	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Text,
		&negative,
		&p.ContentHash,
		&p.UseCount,
		&createdAt,
		&lastUsedAt,
	)
	if err != nil {
		return nil, err
	}

	if negative.Valid {
		p.NegativeText = &negative.String
	}
	p.CreatedAt = fromMillis(createdAt)
	p.LastUsedAt = fromMillis(lastUsedAt)
	return p, nil
}

// ListPrompts returns the owner's prompt library, most recently used first.
func ListPrompts(db *sql.DB, ownerID int64, limit int) ([]*models.Prompt, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, owner_id, text, negative_text, content_hash, use_count, created_at, last_used_at
		FROM prompts WHERE owner_id = ?
		ORDER BY last_used_at DESC, id DESC
		LIMIT ?
	`
	rows, err := db.Query(query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query prompts: %w", err)
	}
	defer rows.Close()

	var prompts []*models.Prompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt row: %w", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prompt rows: %w", err)
	}

	return prompts, nil
}

// DeletePrompt removes a prompt-library entry after an ownership check.
func DeletePrompt(db *sql.DB, ownerID, id int64) error {
	result, err := db.Exec(`DELETE FROM prompts WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = db.QueryRow(`SELECT 1 FROM prompts WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check prompt existence: %w", err)
	}
	return ErrNotOwner
}
