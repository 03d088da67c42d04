package models

import "time"

// ErrorResponse is the JSON error body used by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// ImagePage is one page of gallery results. Done is the authoritative
// "no more data" signal: pages may come back shorter than the requested
// limit when filters are sparse, so callers must keep requesting until
// Done is true rather than treating a short page as the end.
type ImagePage struct {
	Items      []ImageSummary `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
	Done       bool           `json:"done"`
}

// BulkResult is the aggregate outcome of a bulk mutation. Per-item
// failures do not abort the batch; they are reported here instead.
type BulkResult struct {
	SuccessCount int      `json:"success_count"`
	Errors       []string `json:"errors,omitempty"`
}

// UploadResponse is returned after a successful reference-image upload.
type UploadResponse struct {
	ID           int64     `json:"id"`
	URL          string    `json:"url"`
	ThumbnailURL *string   `json:"thumbnail_url"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	CreatedAt    time.Time `json:"created_at"`
}

// GenerateRequest is the batch-generation request body.
type GenerateRequest struct {
	Prompt         string           `json:"prompt"`
	NegativePrompt *string          `json:"negative_prompt,omitempty"`
	Model          string           `json:"model"`
	Count          int              `json:"count"`
	Seed           *int64           `json:"seed,omitempty"`
	Visibility     Visibility       `json:"visibility"`
	Params         GenerationParams `json:"params"`
}

// GenerateResponse reports the created records plus per-item failures.
type GenerateResponse struct {
	Created []ImageDetail `json:"created"`
	Errors  []string      `json:"errors,omitempty"`
}

// EnhanceRequest is the prompt-enhancement request body.
type EnhanceRequest struct {
	Prompt string `json:"prompt"`
}

// EnhanceResponse carries the enhanced prompt text.
type EnhanceResponse struct {
	Prompt string `json:"prompt"`
}

// VisibilityRequest changes a single image's visibility.
type VisibilityRequest struct {
	ID         int64      `json:"id"`
	Visibility Visibility `json:"visibility"`
}

// VisibilityBulkRequest changes visibility for a set of images.
type VisibilityBulkRequest struct {
	IDs        []int64    `json:"ids"`
	Visibility Visibility `json:"visibility"`
}

// DeleteBulkRequest deletes a set of images.
type DeleteBulkRequest struct {
	IDs []int64 `json:"ids"`
}

// SavePromptRequest adds (or touches) a prompt-library entry.
type SavePromptRequest struct {
	Text         string  `json:"text"`
	NegativeText *string `json:"negative_text,omitempty"`
}

// LoginRequest is the password-login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LimitStatus is the read-only rate-limit status for one endpoint.
type LimitStatus struct {
	Endpoint  string    `json:"endpoint"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// HealthResponse is the health probe body.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Database      string `json:"database"`
	Storage       string `json:"storage"`
	TotalImages   int    `json:"total_images"`
}
