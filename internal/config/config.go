package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration, loaded once at startup.
type Config struct {
	Port   string
	DBPath string

	// Object storage (S3-compatible: R2, MinIO, AWS S3)
	StorageBucket    string
	StorageRegion    string
	StorageEndpoint  string // custom endpoint for R2/MinIO
	StorageAccessKey string
	StorageSecretKey string
	StoragePathStyle bool   // path-style addressing (required for MinIO)
	PublicBaseURL    string // public URL prefix for stored objects

	// Generation / enhancement provider
	OpenAIKey       string
	ChatModel       string // prompt enhancement
	ImageModel      string // default generation model
	EnhanceTimeout  time.Duration
	GenerateTimeout time.Duration

	// Upload limits
	MaxUploadBytes int64
	MaxBatchCount  int

	// Thumbnails
	ThumbnailSize        int
	VideoThumbnailOffset time.Duration

	// Rate limits, per logical endpoint
	GenerateLimit  int
	GenerateWindow time.Duration
	UploadLimit    int
	UploadWindow   time.Duration
	EnhanceLimit   int
	EnhanceWindow  time.Duration

	// Sessions
	SessionExpiryHours int
	SecureCookies      bool

	// Optional OIDC provider (SSO disabled when IssuerURL is empty)
	OIDCIssuerURL    string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	CleanupIntervalMinutes int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		DBPath: getEnv("DB_PATH", "./atelier.db"),

		StorageBucket:    getEnv("STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("STORAGE_REGION", "auto"),
		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", ""),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		StoragePathStyle: getEnvBool("STORAGE_PATH_STYLE", false),
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", ""),

		OpenAIKey:       getEnv("OPENAI_API_KEY", ""),
		ChatModel:       getEnv("CHAT_MODEL", "gpt-4o-mini"),
		ImageModel:      getEnv("IMAGE_MODEL", "dall-e-3"),
		EnhanceTimeout:  time.Duration(getEnvInt("ENHANCE_TIMEOUT_SECONDS", 30)) * time.Second,
		GenerateTimeout: time.Duration(getEnvInt("GENERATE_TIMEOUT_SECONDS", 120)) * time.Second,

		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB default
		MaxBatchCount:  getEnvInt("MAX_BATCH_COUNT", 4),

		ThumbnailSize:        getEnvInt("THUMBNAIL_SIZE", 256),
		VideoThumbnailOffset: time.Duration(getEnvInt("VIDEO_THUMBNAIL_OFFSET_MS", 500)) * time.Millisecond,

		GenerateLimit:  getEnvInt("RATE_LIMIT_GENERATE", 20),
		GenerateWindow: time.Duration(getEnvInt("RATE_LIMIT_GENERATE_WINDOW_SECONDS", 3600)) * time.Second,
		UploadLimit:    getEnvInt("RATE_LIMIT_UPLOAD", 60),
		UploadWindow:   time.Duration(getEnvInt("RATE_LIMIT_UPLOAD_WINDOW_SECONDS", 3600)) * time.Second,
		EnhanceLimit:   getEnvInt("RATE_LIMIT_ENHANCE", 30),
		EnhanceWindow:  time.Duration(getEnvInt("RATE_LIMIT_ENHANCE_WINDOW_SECONDS", 3600)) * time.Second,

		SessionExpiryHours: getEnvInt("SESSION_EXPIRY_HOURS", 168),
		SecureCookies:      getEnvBool("SECURE_COOKIES", false),

		OIDCIssuerURL:    getEnv("OIDC_ISSUER_URL", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  getEnv("OIDC_REDIRECT_URL", ""),

		CleanupIntervalMinutes: getEnvInt("CLEANUP_INTERVAL_MINUTES", 30),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validate ensures configuration values are sensible.
func (c *Config) validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}

	if c.MaxBatchCount <= 0 {
		return fmt.Errorf("MAX_BATCH_COUNT must be positive, got %d", c.MaxBatchCount)
	}

	if c.ThumbnailSize < 16 || c.ThumbnailSize > 1024 {
		return fmt.Errorf("THUMBNAIL_SIZE must be between 16 and 1024, got %d", c.ThumbnailSize)
	}

	if c.GenerateLimit <= 0 || c.UploadLimit <= 0 || c.EnhanceLimit <= 0 {
		return fmt.Errorf("rate limits must be positive (generate=%d upload=%d enhance=%d)",
			c.GenerateLimit, c.UploadLimit, c.EnhanceLimit)
	}

	if c.GenerateWindow <= 0 || c.UploadWindow <= 0 || c.EnhanceWindow <= 0 {
		return fmt.Errorf("rate limit windows must be positive")
	}

	if c.SessionExpiryHours <= 0 {
		return fmt.Errorf("SESSION_EXPIRY_HOURS must be positive, got %d", c.SessionExpiryHours)
	}

	if c.CleanupIntervalMinutes <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL_MINUTES must be positive, got %d", c.CleanupIntervalMinutes)
	}

	// OIDC is all-or-nothing
	if c.OIDCIssuerURL != "" {
		if c.OIDCClientID == "" || c.OIDCRedirectURL == "" {
			return fmt.Errorf("OIDC_CLIENT_ID and OIDC_REDIRECT_URL are required when OIDC_ISSUER_URL is set")
		}
	}

	return nil
}

// SSOEnabled reports whether an OIDC provider is configured.
func (c *Config) SSOEnabled() bool {
	return c.OIDCIssuerURL != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvInt64 retrieves an int64 environment variable or returns a default value.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
