// Package storage abstracts the object store holding generated media.
// Implementations cover S3-compatible services (R2, MinIO, AWS S3) and an
// in-memory mock for tests.
package storage

import "context"

// UploadResult describes one stored object.
type UploadResult struct {
	Key       string
	URL       string
	SizeBytes int64
}

// MediaUpload is the outcome of an upload with thumbnail generation.
// Thumbnail is nil when generation failed or the content type has no
// thumbnail support; that is not an error condition.
type MediaUpload struct {
	Media     UploadResult
	Thumbnail *UploadResult
}

// Backend is the object-store interface used by handlers.
type Backend interface {
	// Upload stores data under key and returns its public URL and size.
	Upload(ctx context.Context, key string, data []byte, contentType string) (UploadResult, error)

	// UploadWithThumbnail stores the media and a derived thumbnail.
	// The thumbnail is best-effort: its failure is logged, never returned.
	// Main upload failure is fatal and propagated.
	UploadWithThumbnail(ctx context.Context, key string, data []byte, contentType string) (MediaUpload, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error
}

// ThumbKey derives the thumbnail object key from the media key. The
// database layer mirrors this convention when returning keys for
// out-of-band deletion.
func ThumbKey(key string) string {
	return key + "_thumb.jpg"
}

// StorageError carries operation context for storage failures.
type StorageError struct {
	Op      string // operation that failed ("Upload", "Delete", ...)
	Key     string // object key involved
	Err     error  // underlying error
	Message string // optional human-readable detail
}

func (e *StorageError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Key != "" {
		return e.Op + " " + e.Key + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a StorageError with the given details.
func NewStorageError(op, key string, err error) *StorageError {
	return &StorageError{Op: op, Key: key, Err: err}
}

// NewStorageErrorWithMessage creates a StorageError with a custom message.
func NewStorageErrorWithMessage(op, key string, err error, message string) *StorageError {
	return &StorageError{Op: op, Key: key, Err: err, Message: message}
}
