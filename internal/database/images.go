package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nferro/atelier/internal/models"
)

// CreateImage inserts a new generated-image record and sets its ID.
// CreatedAt defaults to now when unset. The owner id is fixed at creation
// and never updated afterwards.
func CreateImage(db *sql.DB, img *models.Image) error {
	if !img.Visibility.Valid() {
		return fmt.Errorf("invalid visibility %q", img.Visibility)
	}
	if err := img.Params.Validate(); err != nil {
		return fmt.Errorf("invalid generation params: %w", err)
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}

	paramsJSON, err := json.Marshal(img.Params)
	if err != nil {
		return fmt.Errorf("failed to encode generation params: %w", err)
	}

	query := `
		INSERT INTO images (
			owner_id, visibility, storage_key, public_url, thumbnail_url,
			content_type, size_bytes, width, height, aspect_ratio,
			prompt, negative_prompt, model, seed, params_kind, params_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.Exec(
		query,
		img.OwnerID,
		string(img.Visibility),
		img.StorageKey,
		img.PublicURL,
		img.ThumbnailURL,
		img.ContentType,
		img.SizeBytes,
		img.Width,
		img.Height,
		img.AspectRatio,
		img.Prompt,
		img.NegativePrompt,
		img.Model,
		img.Seed,
		string(img.Params.Kind),
		string(paramsJSON),
		millis(img.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	img.ID = id
	return nil
}

const imageColumns = `
	id, owner_id, visibility, storage_key, public_url, thumbnail_url,
	content_type, size_bytes, width, height, aspect_ratio,
	prompt, negative_prompt, model, seed, params_json, created_at`

// GetImageByID retrieves a full-fidelity image record.
// Returns ErrNotFound when no record exists.
func GetImageByID(db *sql.DB, id int64) (*models.Image, error) {
	query := `SELECT` + imageColumns + ` FROM images WHERE id = ?`
	img, err := scanImage(db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}
	return img, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*models.Image, error) {
	img := &models.Image{}
	var visibility, paramsJSON string
	var thumbnailURL, negativePrompt sql.NullString
	var aspectRatio sql.NullFloat64
	var seed sql.NullInt64
	var createdAt int64

	err := row.Scan(
		&img.ID,
		&img.OwnerID,
		&visibility,
		&img.StorageKey,
		&img.PublicURL,
		&thumbnailURL,
		&img.ContentType,
		&img.SizeBytes,
		&img.Width,
		&img.Height,
		&aspectRatio,
		&img.Prompt,
		&negativePrompt,
		&img.Model,
		&seed,
		&paramsJSON,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	img.Visibility = models.Visibility(visibility)
	if thumbnailURL.Valid {
		img.ThumbnailURL = &thumbnailURL.String
	}
	if negativePrompt.Valid {
		img.NegativePrompt = &negativePrompt.String
	}
	if aspectRatio.Valid {
		img.AspectRatio = &aspectRatio.Float64
	}
	if seed.Valid {
		img.Seed = &seed.Int64
	}
	if err := json.Unmarshal([]byte(paramsJSON), &img.Params); err != nil {
		return nil, fmt.Errorf("failed to decode generation params: %w", err)
	}
	img.CreatedAt = fromMillis(createdAt)

	return img, nil
}

// SetVisibility changes an image's visibility. Only the owner may do this;
// ErrNotOwner is returned when the record belongs to someone else, and
// ErrNotFound when no record exists.
func SetVisibility(db *sql.DB, ownerID, id int64, visibility models.Visibility) error {
	if !visibility.Valid() {
		return fmt.Errorf("invalid visibility %q", visibility)
	}

	result, err := db.Exec(
		`UPDATE images SET visibility = ? WHERE id = ? AND owner_id = ?`,
		string(visibility), id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update visibility: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	return ownershipError(db, id)
}

// ownershipError distinguishes "missing" from "not yours" after a
// zero-row owner-scoped mutation.
func ownershipError(db *sql.DB, id int64) error {
	var exists int
	err := db.QueryRow(`SELECT 1 FROM images WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check image existence: %w", err)
	}
	return ErrNotOwner
}

// SetVisibilityBulk applies a visibility change to a set of images.
// Per-item failures do not abort the batch; they are reported in the result.
func SetVisibilityBulk(db *sql.DB, ownerID int64, ids []int64, visibility models.Visibility) (models.BulkResult, error) {
	if !visibility.Valid() {
		return models.BulkResult{}, fmt.Errorf("invalid visibility %q", visibility)
	}

	var result models.BulkResult
	for _, id := range ids {
		if err := SetVisibility(db, ownerID, id, visibility); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("image %d: %v", id, err))
			continue
		}
		result.SuccessCount++
	}
	return result, nil
}

// DeleteImage removes an image record after an ownership check and returns
// the storage keys (media, and thumbnail when present) for out-of-band
// deletion from the object store. The metadata delete is authoritative;
// the object-store side-effect is the caller's best-effort concern.
func DeleteImage(db *sql.DB, ownerID, id int64) ([]string, error) {
	var storageKey string
	var thumbnailURL sql.NullString
	err := db.QueryRow(
		`SELECT storage_key, thumbnail_url FROM images WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	).Scan(&storageKey, &thumbnailURL)
	if err == sql.ErrNoRows {
		return nil, ownershipError(db, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query image for delete: %w", err)
	}

	result, err := db.Exec(`DELETE FROM images WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete image: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Deleted concurrently between the select and the delete.
		return nil, ErrNotFound
	}

	keys := []string{storageKey}
	if thumbnailURL.Valid {
		keys = append(keys, thumbKeyFor(storageKey))
	}
	return keys, nil
}

// thumbKeyFor derives the thumbnail storage key from the media key.
// Must match the uploader's naming convention.
func thumbKeyFor(key string) string {
	return key + "_thumb.jpg"
}

// DeleteImagesBulk deletes a set of images with per-item error handling and
// returns both the aggregate result and all storage keys to clean up.
func DeleteImagesBulk(db *sql.DB, ownerID int64, ids []int64) (models.BulkResult, []string) {
	var result models.BulkResult
	var keys []string

	for _, id := range ids {
		itemKeys, err := DeleteImage(db, ownerID, id)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("image %d: %v", id, err))
			continue
		}
		result.SuccessCount++
		keys = append(keys, itemKeys...)
	}

	return result, keys
}

// CountImages returns the total number of image records.
func CountImages(db *sql.DB) (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM images`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return count, nil
}
