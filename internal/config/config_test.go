package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.ImageModel != "dall-e-3" {
		t.Errorf("ImageModel = %q, want dall-e-3", cfg.ImageModel)
	}
	if cfg.MaxUploadBytes != 52428800 {
		t.Errorf("MaxUploadBytes = %d, want 50MB", cfg.MaxUploadBytes)
	}
	if cfg.GenerateTimeout != 120*time.Second {
		t.Errorf("GenerateTimeout = %s, want 2m", cfg.GenerateTimeout)
	}
	if cfg.ThumbnailSize != 256 {
		t.Errorf("ThumbnailSize = %d, want 256", cfg.ThumbnailSize)
	}
	if cfg.SSOEnabled() {
		t.Error("SSO should be disabled without an issuer URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_BATCH_COUNT", "8")
	t.Setenv("RATE_LIMIT_GENERATE", "5")
	t.Setenv("STORAGE_PATH_STYLE", "true")
	t.Setenv("VIDEO_THUMBNAIL_OFFSET_MS", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.MaxBatchCount != 8 {
		t.Errorf("MaxBatchCount = %d, want 8", cfg.MaxBatchCount)
	}
	if cfg.GenerateLimit != 5 {
		t.Errorf("GenerateLimit = %d, want 5", cfg.GenerateLimit)
	}
	if !cfg.StoragePathStyle {
		t.Error("StoragePathStyle should be true")
	}
	if cfg.VideoThumbnailOffset != 250*time.Millisecond {
		t.Errorf("VideoThumbnailOffset = %s, want 250ms", cfg.VideoThumbnailOffset)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero batch count", "MAX_BATCH_COUNT", "0"},
		{"negative upload bytes", "MAX_UPLOAD_BYTES", "-1"},
		{"thumbnail too small", "THUMBNAIL_SIZE", "4"},
		{"thumbnail too large", "THUMBNAIL_SIZE", "4096"},
		{"zero generate limit", "RATE_LIMIT_GENERATE", "0"},
		{"zero session expiry", "SESSION_EXPIRY_HOURS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load accepted %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadOIDCAllOrNothing(t *testing.T) {
	t.Setenv("OIDC_ISSUER_URL", "https://id.example.com")

	if _, err := Load(); err == nil {
		t.Error("issuer without client id and redirect URL should fail validation")
	}

	t.Setenv("OIDC_CLIENT_ID", "atelier")
	t.Setenv("OIDC_REDIRECT_URL", "https://app.example.com/api/auth/sso/callback")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.SSOEnabled() {
		t.Error("SSO should be enabled with a full OIDC config")
	}
}
