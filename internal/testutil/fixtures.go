package testutil

import (
	"bytes"
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/nferro/atelier/internal/database"
	"github.com/nferro/atelier/internal/models"
)

// CreateTestUser inserts a user and returns it.
func CreateTestUser(t *testing.T, db *sql.DB, username string) *models.User {
	t.Helper()

	user, err := database.CreateUser(db, username, username+"@example.com", "", username)
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestSession inserts a session for the user and returns its token.
func CreateTestSession(t *testing.T, db *sql.DB, userID int64) string {
	t.Helper()

	session, err := database.CreateUserSession(db, userID, time.Hour)
	if err != nil {
		t.Fatalf("failed to create test session: %v", err)
	}
	return session.Token
}

// SampleImage returns an unsaved image record owned by ownerID.
func SampleImage(ownerID int64, visibility models.Visibility) *models.Image {
	return &models.Image{
		OwnerID:     ownerID,
		Visibility:  visibility,
		StorageKey:  fmt.Sprintf("generated/%d-%d.png", ownerID, time.Now().UnixNano()),
		PublicURL:   "https://cdn.test/sample.png",
		ContentType: "image/png",
		SizeBytes:   2048,
		Width:       1024,
		Height:      1024,
		Prompt:      "a lighthouse at dusk",
		Model:       "dall-e-3",
		Params: models.GenerationParams{
			Kind:  models.KindImage,
			Image: &models.ImageParams{Width: 1024, Height: 1024},
		},
	}
}

// CreateTestImage inserts an image for ownerID with the given model and
// visibility and returns it.
func CreateTestImage(t *testing.T, db *sql.DB, ownerID int64, model string, visibility models.Visibility) *models.Image {
	t.Helper()

	img := SampleImage(ownerID, visibility)
	img.Model = model
	if err := database.CreateImage(db, img); err != nil {
		t.Fatalf("failed to create test image: %v", err)
	}
	return img
}

// TinyPNG encodes a small solid-color PNG for upload tests.
func TinyPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}
