// Package s3 implements the storage.Backend interface for AWS S3 and
// S3-compatible object stores (Cloudflare R2, MinIO).
package s3

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nferro/atelier/internal/metrics"
	"github.com/nferro/atelier/internal/storage"
	"github.com/nferro/atelier/internal/thumbnail"
)

// uploaderAPI is the slice of manager.Uploader that Storage uses.
type uploaderAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// objectAPI is the slice of s3.Client that Storage uses.
type objectAPI interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

const (
	// multipartUploadPartSize is the size for S3 multipart upload parts (5MB minimum)
	multipartUploadPartSize = 5 * 1024 * 1024

	// Connection pool tuning. The keep-alive idle timeout stays under
	// R2's 60s idle-connection cutoff so pooled sockets are never handed
	// back already half-closed.
	maxIdleConns        = 32
	maxIdleConnsPerHost = 16
	idleConnTimeout     = 50 * time.Second
)

// Config holds configuration for S3-compatible storage.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint for R2/MinIO
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool   // path-style addressing (required for MinIO)
	PublicBaseURL   string // public URL prefix for stored objects

	ThumbnailSize        int
	VideoThumbnailOffset time.Duration
}

// Storage implements storage.Backend over an S3-compatible store.
// The underlying HTTP client is constructed once with keep-alive pooling
// and reused for every request; callers inject the Storage instance
// rather than reaching for a package-level singleton.
type Storage struct {
	client   objectAPI
	uploader uploaderAPI
	bucket   string
	baseURL  string

	thumbSize   int
	videoOffset time.Duration

	// Thumbnail derivation is injected so the upload orchestration can be
	// tested without ffmpeg or a live bucket.
	imageThumb func(data []byte, size int) ([]byte, error)
	videoThumb func(ctx context.Context, data []byte, offset time.Duration, size int) ([]byte, error)
}

// New creates a Storage with a pooled HTTP client and verifies bucket access.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket name is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, fmt.Errorf("public base URL is required")
	}

	// One long-lived client for all uploads: repeated TLS handshakes are
	// the dominant cost of naive per-request clients.
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        maxIdleConns,
			MaxIdleConnsPerHost: maxIdleConnsPerHost,
			IdleConnTimeout:     idleConnTimeout,
		},
	}

	optFuncs := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.Region != "" {
		optFuncs = append(optFuncs, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFuncs = append(optFuncs, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFuncs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = multipartUploadPartSize
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	thumbSize := cfg.ThumbnailSize
	if thumbSize <= 0 {
		thumbSize = 256
	}
	videoOffset := cfg.VideoThumbnailOffset
	if videoOffset <= 0 {
		videoOffset = 500 * time.Millisecond
	}

	slog.Info("object storage initialized",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"endpoint", cfg.Endpoint,
		"path_style", cfg.PathStyle,
	)

	return &Storage{
		client:      client,
		uploader:    uploader,
		bucket:      cfg.Bucket,
		baseURL:     strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		thumbSize:   thumbSize,
		videoOffset: videoOffset,
		imageThumb:  thumbnail.FromImage,
		videoThumb:  thumbnail.FromVideo,
	}, nil
}

// validateKey rejects keys with path traversal or dangerous characters.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty key not allowed")
	}
	if strings.ContainsRune(key, '\x00') {
		return fmt.Errorf("null bytes not allowed in key")
	}
	if strings.Contains(key, "%") {
		return fmt.Errorf("encoded characters not allowed in key")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("path traversal not allowed: %s", key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == "/" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid key: %s", key)
	}
	return nil
}

func (s *Storage) publicURL(key string) string {
	return s.baseURL + "/" + key
}

// Upload stores data under key and returns its public URL and size.
func (s *Storage) Upload(ctx context.Context, key string, data []byte, contentType string) (storage.UploadResult, error) {
	if err := validateKey(key); err != nil {
		return storage.UploadResult{}, storage.NewStorageErrorWithMessage("Upload", key, err, "key validation failed")
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return storage.UploadResult{}, storage.NewStorageError("Upload", key, err)
	}

	slog.Debug("object stored",
		"key", key,
		"size", len(data),
		"content_type", contentType,
	)

	return storage.UploadResult{
		Key:       key,
		URL:       s.publicURL(key),
		SizeBytes: int64(len(data)),
	}, nil
}

// UploadWithThumbnail stores the media and a derived thumbnail.
//
// For video content, frame extraction runs concurrently with the main
// upload since both are slow; the thumbnail object is uploaded once both
// finish. For images the thumbnail is produced after the main upload,
// sequentially, as resizing is cheap relative to goroutine plumbing.
//
// Thumbnail failure is logged and never fails the call; the main upload's
// failure is fatal and propagated.
func (s *Storage) UploadWithThumbnail(ctx context.Context, key string, data []byte, contentType string) (storage.MediaUpload, error) {
	if strings.HasPrefix(contentType, "video/") {
		return s.uploadVideo(ctx, key, data, contentType)
	}
	return s.uploadImage(ctx, key, data, contentType)
}

func (s *Storage) uploadImage(ctx context.Context, key string, data []byte, contentType string) (storage.MediaUpload, error) {
	media, err := s.Upload(ctx, key, data, contentType)
	if err != nil {
		return storage.MediaUpload{}, err
	}

	out := storage.MediaUpload{Media: media}

	thumb, err := s.imageThumb(data, s.thumbSize)
	if err != nil {
		slog.Warn("thumbnail generation failed", "key", key, "error", err)
		metrics.ThumbnailsTotal.WithLabelValues("failure").Inc()
		return out, nil
	}
	out.Thumbnail = s.uploadThumb(ctx, key, thumb)
	return out, nil
}

func (s *Storage) uploadVideo(ctx context.Context, key string, data []byte, contentType string) (storage.MediaUpload, error) {
	type thumbResult struct {
		data []byte
		err  error
	}
	thumbCh := make(chan thumbResult, 1)

	go func() {
		t, err := s.videoThumb(ctx, data, s.videoOffset, s.thumbSize)
		thumbCh <- thumbResult{data: t, err: err}
	}()

	media, err := s.Upload(ctx, key, data, contentType)
	if err != nil {
		// Extraction result is discarded; the buffered channel lets the
		// goroutine finish regardless.
		return storage.MediaUpload{}, err
	}

	out := storage.MediaUpload{Media: media}

	res := <-thumbCh
	if res.err != nil {
		slog.Warn("video thumbnail extraction failed", "key", key, "error", res.err)
		metrics.ThumbnailsTotal.WithLabelValues("failure").Inc()
		return out, nil
	}
	out.Thumbnail = s.uploadThumb(ctx, key, res.data)
	return out, nil
}

// uploadThumb uploads thumbnail bytes; returns nil (logged) on failure.
func (s *Storage) uploadThumb(ctx context.Context, mediaKey string, data []byte) *storage.UploadResult {
	thumbKey := storage.ThumbKey(mediaKey)
	result, err := s.Upload(ctx, thumbKey, data, "image/jpeg")
	if err != nil {
		slog.Warn("thumbnail upload failed", "key", thumbKey, "error", err)
		metrics.ThumbnailsTotal.WithLabelValues("failure").Inc()
		return nil
	}
	metrics.ThumbnailsTotal.WithLabelValues("success").Inc()
	return &result
}

// Delete removes an object. S3 treats deleting a missing object as success.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return storage.NewStorageErrorWithMessage("Delete", key, err, "key validation failed")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return storage.NewStorageError("Delete", key, err)
	}

	slog.Debug("object deleted", "key", key)
	return nil
}

// HealthCheck verifies the bucket is reachable, with a bounded timeout.
func (s *Storage) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.client.HeadBucket(checkCtx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return storage.NewStorageErrorWithMessage("HealthCheck", s.bucket, err, "bucket not accessible")
	}
	return nil
}

// Ensure Storage implements storage.Backend.
var _ storage.Backend = (*Storage)(nil)
