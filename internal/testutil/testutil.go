// Package testutil holds shared helpers for package tests.
package testutil

import (
	"bytes"
	"database/sql"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nferro/atelier/internal/config"
	"github.com/nferro/atelier/internal/database"
)

// SetupTestDB creates an in-memory SQLite database for testing.
// The database is automatically closed when the test completes.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// IMPORTANT: Force single connection for in-memory databases.
	// Each connection in the pool gets its own separate :memory: database.
	db.SetMaxOpenConns(1)

	if err := database.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// SetupTestConfig creates a test configuration with fast timeouts and
// small limits.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Port:   "8080",
		DBPath: ":memory:",

		StorageBucket:    "test-bucket",
		StorageRegion:    "auto",
		PublicBaseURL:    "https://cdn.test",
		StoragePathStyle: true,

		ChatModel:       "gpt-4o-mini",
		ImageModel:      "dall-e-3",
		EnhanceTimeout:  5 * time.Second,
		GenerateTimeout: 10 * time.Second,

		MaxUploadBytes: 10 * 1024 * 1024,
		MaxBatchCount:  4,

		ThumbnailSize:        64,
		VideoThumbnailOffset: 100 * time.Millisecond,

		GenerateLimit:  5,
		GenerateWindow: time.Hour,
		UploadLimit:    5,
		UploadWindow:   time.Hour,
		EnhanceLimit:   5,
		EnhanceWindow:  time.Hour,

		SessionExpiryHours:     24,
		CleanupIntervalMinutes: 60,
	}
}

// CreateMultipartForm builds a multipart form with an optional file
// field plus extra form values. Returns the body and content type.
func CreateMultipartForm(t *testing.T, fileContent []byte, filename string, formValues map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if fileContent != nil {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := io.Copy(part, bytes.NewReader(fileContent)); err != nil {
			t.Fatalf("failed to write file content: %v", err)
		}
	}

	for key, val := range formValues {
		if err := writer.WriteField(key, val); err != nil {
			t.Fatalf("failed to write form field %s: %v", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

// AssertStatusCode checks that the HTTP response status code matches expected
func AssertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, wantStatus int) {
	t.Helper()

	if rr.Code != wantStatus {
		t.Errorf("status code = %d, want %d\nBody: %s", rr.Code, wantStatus, rr.Body.String())
	}
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()

	if err == nil {
		t.Fatal("expected error but got nil")
	}
}
