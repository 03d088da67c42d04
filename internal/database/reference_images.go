package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nferro/atelier/internal/models"
)

// CreateReferenceImage inserts an uploaded reference-image record.
func CreateReferenceImage(db *sql.DB, ref *models.ReferenceImage) error {
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO reference_images (
			owner_id, storage_key, public_url, thumbnail_url,
			content_type, size_bytes, width, height, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.Exec(
		query,
		ref.OwnerID,
		ref.StorageKey,
		ref.PublicURL,
		ref.ThumbnailURL,
		ref.ContentType,
		ref.SizeBytes,
		ref.Width,
		ref.Height,
		millis(ref.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reference image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	ref.ID = id
	return nil
}

// ListReferenceImages returns the owner's reference images, newest first.
// Reference images are always private, so there is no visibility filter.
func ListReferenceImages(db *sql.DB, ownerID int64, limit int) ([]*models.ReferenceImage, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, owner_id, storage_key, public_url, thumbnail_url,
			content_type, size_bytes, width, height, created_at
		FROM reference_images
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := db.Query(query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference images: %w", err)
	}
	defer rows.Close()

	var refs []*models.ReferenceImage
	for rows.Next() {
		ref := &models.ReferenceImage{}
		var thumbnailURL sql.NullString
		var createdAt int64

		err := rows.Scan(
			&ref.ID,
			&ref.OwnerID,
			&ref.StorageKey,
			&ref.PublicURL,
			&thumbnailURL,
			&ref.ContentType,
			&ref.SizeBytes,
			&ref.Width,
			&ref.Height,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reference image row: %w", err)
		}

		if thumbnailURL.Valid {
			ref.ThumbnailURL = &thumbnailURL.String
		}
		ref.CreatedAt = fromMillis(createdAt)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reference image rows: %w", err)
	}

	return refs, nil
}

// DeleteReferenceImage removes a reference image after an ownership check
// and returns the storage keys for best-effort object-store cleanup.
func DeleteReferenceImage(db *sql.DB, ownerID, id int64) ([]string, error) {
	var storageKey string
	var thumbnailURL sql.NullString
	err := db.QueryRow(
		`SELECT storage_key, thumbnail_url FROM reference_images WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	).Scan(&storageKey, &thumbnailURL)
	if err == sql.ErrNoRows {
		var exists int
		err = db.QueryRow(`SELECT 1 FROM reference_images WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check reference image existence: %w", err)
		}
		return nil, ErrNotOwner
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query reference image for delete: %w", err)
	}

	if _, err := db.Exec(`DELETE FROM reference_images WHERE id = ? AND owner_id = ?`, id, ownerID); err != nil {
		return nil, fmt.Errorf("failed to delete reference image: %w", err)
	}

	keys := []string{storageKey}
	if thumbnailURL.Valid {
		keys = append(keys, thumbKeyFor(storageKey))
	}
	return keys, nil
}
