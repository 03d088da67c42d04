package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/storage"
	"github.com/nferro/atelier/internal/storage/mock"
	"github.com/nferro/atelier/internal/testutil"
)

func TestUploadHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	store := mock.New()
	user := testutil.CreateTestUser(t, db, "alice")

	body, contentType := testutil.CreateMultipartForm(t, testutil.TinyPNG(t, 128, 96), "photo.png", nil)
	req := authedRequest(http.MethodPost, "/api/upload", body, user)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	UploadHandler(db, cfg, store)(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusCreated)

	var resp models.UploadResponse
	decodeBody(t, rr, &resp)
	if resp.ID == 0 {
		t.Error("expected a record id")
	}
	if resp.Width != 128 || resp.Height != 96 {
		t.Errorf("dimensions = %dx%d, want 128x96", resp.Width, resp.Height)
	}
	if resp.ContentType != "image/png" {
		t.Errorf("content type = %q, want image/png", resp.ContentType)
	}
	if !strings.HasPrefix(resp.URL, "https://cdn.test/references/") {
		t.Errorf("url = %q, want a references/ key", resp.URL)
	}
	if resp.ThumbnailURL == nil {
		t.Error("expected a thumbnail URL")
	}

	uploads := store.Uploads()
	if len(uploads) != 2 {
		t.Fatalf("uploads = %v, want media plus thumbnail", uploads)
	}
	if storage.ThumbKey(uploads[0]) != uploads[1] {
		t.Errorf("thumbnail key %q does not derive from media key %q", uploads[1], uploads[0])
	}
}

func TestUploadHandlerUnauthorized(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)

	body, contentType := testutil.CreateMultipartForm(t, testutil.TinyPNG(t, 8, 8), "photo.png", nil)
	req := authedRequest(http.MethodPost, "/api/upload", body, nil)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	UploadHandler(db, cfg, mock.New())(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusUnauthorized)
}

func TestUploadHandlerUnsupportedType(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, db, "alice")

	body, contentType := testutil.CreateMultipartForm(t, []byte("%PDF-1.4 not an image"), "doc.pdf", nil)
	req := authedRequest(http.MethodPost, "/api/upload", body, user)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	UploadHandler(db, cfg, mock.New())(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusUnsupportedMediaType)
	if code := errorCode(t, rr); code != "UNSUPPORTED_TYPE" {
		t.Errorf("code = %q, want UNSUPPORTED_TYPE", code)
	}
}

func TestUploadHandlerNoFile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, db, "alice")

	body, contentType := testutil.CreateMultipartForm(t, nil, "", map[string]string{"note": "empty"})
	req := authedRequest(http.MethodPost, "/api/upload", body, user)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	UploadHandler(db, cfg, mock.New())(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusBadRequest)
}

func TestUploadHandlerStorageFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, db, "alice")

	store := mock.New()
	store.FailUpload = "*"

	body, contentType := testutil.CreateMultipartForm(t, testutil.TinyPNG(t, 8, 8), "photo.png", nil)
	req := authedRequest(http.MethodPost, "/api/upload", body, user)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	UploadHandler(db, cfg, store)(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusBadGateway)
	if code := errorCode(t, rr); code != "STORAGE_ERROR" {
		t.Errorf("code = %q, want STORAGE_ERROR", code)
	}
}

func TestUploadHandlerThumbnailFailureNonFatal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)
	user := testutil.CreateTestUser(t, db, "alice")

	store := mock.New()
	store.FailThumbnail = true

	body, contentType := testutil.CreateMultipartForm(t, testutil.TinyPNG(t, 8, 8), "photo.png", nil)
	req := authedRequest(http.MethodPost, "/api/upload", body, user)
	req.Header.Set("Content-Type", contentType)

	rr := httptest.NewRecorder()
	UploadHandler(db, cfg, store)(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusCreated)

	var resp models.UploadResponse
	decodeBody(t, rr, &resp)
	if resp.ThumbnailURL != nil {
		t.Error("thumbnail URL should be absent when generation failed")
	}
}

func TestUploadHandlerMethodNotAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.SetupTestConfig(t)

	req := httptest.NewRequest(http.MethodGet, "/api/upload", nil)
	rr := httptest.NewRecorder()
	UploadHandler(db, cfg, mock.New())(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusMethodNotAllowed)
}
