package models

import "time"

// ReferenceImage is a user-uploaded input image (img2img, style reference).
// Reference images are always private to their owner; they have no
// visibility flag and no generation metadata.
type ReferenceImage struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"-"`
	StorageKey   string    `json:"-"`
	PublicURL    string    `json:"url"`
	ThumbnailURL *string   `json:"thumbnail_url"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CreatedAt    time.Time `json:"created_at"`
}
