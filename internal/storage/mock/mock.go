// Package mock provides an in-memory storage.Backend for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/nferro/atelier/internal/storage"
)

// Storage is an in-memory Backend that records every call. All methods
// are safe for concurrent use.
type Storage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	uploads []string // keys in upload order
	deletes []string // keys in delete order

	// FailUpload causes Upload calls for matching keys to fail. An empty
	// string matches nothing; "*" matches everything.
	FailUpload string

	// FailThumbnail suppresses thumbnail generation in
	// UploadWithThumbnail, simulating a decode or extraction failure.
	FailThumbnail bool

	// FailDelete causes Delete calls for matching keys to fail.
	FailDelete string

	// FailHealth causes HealthCheck to fail.
	FailHealth bool
}

// New creates an empty mock storage backend.
func New() *Storage {
	return &Storage{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func matches(pattern, key string) bool {
	if pattern == "" {
		return false
	}
	return pattern == "*" || pattern == key
}

func (s *Storage) Upload(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.UploadResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if matches(s.FailUpload, key) {
		return storage.UploadResult{}, storage.NewStorageError("Upload", key, fmt.Errorf("injected upload failure"))
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = buf
	s.types[key] = contentType
	s.uploads = append(s.uploads, key)

	return storage.UploadResult{
		Key:       key,
		URL:       "https://cdn.test/" + key,
		SizeBytes: int64(len(data)),
	}, nil
}

func (s *Storage) UploadWithThumbnail(ctx context.Context, key string, data []byte, contentType string) (storage.MediaUpload, error) {
	media, err := s.Upload(ctx, key, data, contentType)
	if err != nil {
		return storage.MediaUpload{}, err
	}

	out := storage.MediaUpload{Media: media}
	if s.FailThumbnail {
		return out, nil
	}

	thumb, err := s.Upload(ctx, storage.ThumbKey(key), []byte("thumb"), "image/jpeg")
	if err != nil {
		return out, nil
	}
	out.Thumbnail = &thumb
	return out, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if matches(s.FailDelete, key) {
		return storage.NewStorageError("Delete", key, fmt.Errorf("injected delete failure"))
	}

	delete(s.objects, key)
	delete(s.types, key)
	s.deletes = append(s.deletes, key)
	return nil
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if s.FailHealth {
		return storage.NewStorageError("HealthCheck", "", fmt.Errorf("injected health failure"))
	}
	return nil
}

// Exists reports whether an object is currently stored under key.
func (s *Storage) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Object returns the stored bytes for key, or nil when absent.
func (s *Storage) Object(key string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.objects[key]
}

// ContentType returns the stored content type for key.
func (s *Storage) ContentType(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.types[key]
}

// Uploads returns the keys uploaded so far, in order.
func (s *Storage) Uploads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploads...)
}

// Deletes returns the keys deleted so far, in order.
func (s *Storage) Deletes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deletes...)
}

// UploadCount returns how many uploads succeeded.
func (s *Storage) UploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads)
}

// DeletedKeys reports whether every given key has been deleted.
func (s *Storage) DeletedKeys(keys ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(s.deletes))
	for _, k := range s.deletes {
		seen[k] = true
	}
	for _, k := range keys {
		if !seen[k] {
			return false
		}
	}
	return true
}

var _ storage.Backend = (*Storage)(nil)
