package models

import "time"

// Visibility controls where a generated image is listed.
// "public" images appear in the community feed; "unlisted" images are
// reachable only by their owner or via direct link.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
)

// Valid reports whether v is one of the two allowed visibility values.
func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityUnlisted
}

// AspectRatio returns the canonical aspect ratio for the given dimensions:
// max(w,h)/min(w,h). Returns 0 when either dimension is unknown.
func AspectRatio(width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	if width >= height {
		return float64(width) / float64(height)
	}
	return float64(height) / float64(width)
}

// Image is a generated media record. The bytes live in object storage;
// this row carries everything the studio UI needs to render and filter it.
type Image struct {
	ID             int64
	OwnerID        int64
	Visibility     Visibility
	StorageKey     string
	PublicURL      string
	ThumbnailURL   *string
	ContentType    string
	SizeBytes      int64
	Width          int
	Height         int
	AspectRatio    *float64
	Prompt         string
	NegativePrompt *string
	Model          string
	Seed           *int64
	Params         GenerationParams
	CreatedAt      time.Time
}

// ImageSummary is the lightweight page item returned by gallery queries.
// Heavy fields (prompt text, generation params) are stripped to bound
// payload size; use GetImageByID for full fidelity.
type ImageSummary struct {
	ID           int64      `json:"id"`
	Visibility   Visibility `json:"visibility"`
	PublicURL    string     `json:"url"`
	ThumbnailURL *string    `json:"thumbnail_url"`
	ContentType  string     `json:"content_type"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	AspectRatio  *float64   `json:"aspect_ratio,omitempty"`
	Model        string     `json:"model"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ImageDetail is the full-fidelity JSON shape for a single image.
type ImageDetail struct {
	ID             int64            `json:"id"`
	OwnerID        int64            `json:"owner_id"`
	Visibility     Visibility       `json:"visibility"`
	PublicURL      string           `json:"url"`
	ThumbnailURL   *string          `json:"thumbnail_url"`
	ContentType    string           `json:"content_type"`
	SizeBytes      int64            `json:"size_bytes"`
	Width          int              `json:"width"`
	Height         int              `json:"height"`
	AspectRatio    *float64         `json:"aspect_ratio,omitempty"`
	Prompt         string           `json:"prompt"`
	NegativePrompt *string          `json:"negative_prompt,omitempty"`
	Model          string           `json:"model"`
	Seed           *int64           `json:"seed,omitempty"`
	Params         GenerationParams `json:"params"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Detail converts an Image to its full JSON shape.
func (img *Image) Detail() ImageDetail {
	return ImageDetail{
		ID:             img.ID,
		OwnerID:        img.OwnerID,
		Visibility:     img.Visibility,
		PublicURL:      img.PublicURL,
		ThumbnailURL:   img.ThumbnailURL,
		ContentType:    img.ContentType,
		SizeBytes:      img.SizeBytes,
		Width:          img.Width,
		Height:         img.Height,
		AspectRatio:    img.AspectRatio,
		Prompt:         img.Prompt,
		NegativePrompt: img.NegativePrompt,
		Model:          img.Model,
		Seed:           img.Seed,
		Params:         img.Params,
		CreatedAt:      img.CreatedAt,
	}
}

// Summary converts an Image to its gallery page shape.
func (img *Image) Summary() ImageSummary {
	return ImageSummary{
		ID:           img.ID,
		Visibility:   img.Visibility,
		PublicURL:    img.PublicURL,
		ThumbnailURL: img.ThumbnailURL,
		ContentType:  img.ContentType,
		Width:        img.Width,
		Height:       img.Height,
		AspectRatio:  img.AspectRatio,
		Model:        img.Model,
		CreatedAt:    img.CreatedAt,
	}
}
