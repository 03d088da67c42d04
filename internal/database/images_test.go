package database_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/nferro/atelier/internal/database"
	"github.com/nferro/atelier/internal/models"
	"github.com/nferro/atelier/internal/testutil"
)

func TestCreateAndGetImage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db, "alice")

	negative := "blurry, low quality"
	seed := int64(42)
	ratio := 1.5
	thumbURL := "https://cdn.test/generated/abc_thumb.jpg"

	img := testutil.SampleImage(user.ID, models.VisibilityUnlisted)
	img.NegativePrompt = &negative
	img.Seed = &seed
	img.AspectRatio = &ratio
	img.ThumbnailURL = &thumbURL

	if err := database.CreateImage(db, img); err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	if img.ID == 0 {
		t.Fatal("expected ID to be set after insert")
	}

	got, err := database.GetImageByID(db, img.ID)
	if err != nil {
		t.Fatalf("GetImageByID: %v", err)
	}

	if got.OwnerID != user.ID {
		t.Errorf("OwnerID = %d, want %d", got.OwnerID, user.ID)
	}
	if got.Visibility != models.VisibilityUnlisted {
		t.Errorf("Visibility = %q, want unlisted", got.Visibility)
	}
	if got.Prompt != img.Prompt {
		t.Errorf("Prompt = %q, want %q", got.Prompt, img.Prompt)
	}
	if got.NegativePrompt == nil || *got.NegativePrompt != negative {
		t.Errorf("NegativePrompt = %v, want %q", got.NegativePrompt, negative)
	}
	if got.Seed == nil || *got.Seed != seed {
		t.Errorf("Seed = %v, want %d", got.Seed, seed)
	}
	if got.ThumbnailURL == nil || *got.ThumbnailURL != thumbURL {
		t.Errorf("ThumbnailURL = %v, want %q", got.ThumbnailURL, thumbURL)
	}
	if got.Params.Kind != models.KindImage || got.Params.Image == nil {
		t.Fatalf("Params roundtrip failed: %+v", got.Params)
	}
	if got.Params.Image.Width != 1024 {
		t.Errorf("Params.Image.Width = %d, want 1024", got.Params.Image.Width)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be populated")
	}
}

func TestCreateImageRejectsInvalid(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.CreateTestUser(t, db, "alice")

	img := testutil.SampleImage(user.ID, "secret")
	if err := database.CreateImage(db, img); err == nil {
		t.Error("expected error for invalid visibility")
	}

	img = testutil.SampleImage(user.ID, models.VisibilityPublic)
	img.Params = models.GenerationParams{Kind: models.KindVideo}
	if err := database.CreateImage(db, img); err == nil {
		t.Error("expected error for kind/variant mismatch")
	}
}

func TestGetImageNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)

	_, err := database.GetImageByID(db, 9999)
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSetVisibility(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := testutil.CreateTestUser(t, db, "alice")
	other := testutil.CreateTestUser(t, db, "bob")
	img := testutil.CreateTestImage(t, db, owner.ID, "dall-e-3", models.VisibilityUnlisted)

	if err := database.SetVisibility(db, owner.ID, img.ID, models.VisibilityPublic); err != nil {
		t.Fatalf("SetVisibility: %v", err)
	}
	got, err := database.GetImageByID(db, img.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Visibility != models.VisibilityPublic {
		t.Errorf("visibility = %q, want public", got.Visibility)
	}

	err = database.SetVisibility(db, other.ID, img.ID, models.VisibilityUnlisted)
	if !errors.Is(err, database.ErrNotOwner) {
		t.Errorf("non-owner err = %v, want ErrNotOwner", err)
	}

	err = database.SetVisibility(db, owner.ID, 9999, models.VisibilityPublic)
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}

	if err := database.SetVisibility(db, owner.ID, img.ID, "hidden"); err == nil {
		t.Error("expected error for invalid visibility value")
	}
}

func TestSetVisibilityBulk(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := testutil.CreateTestUser(t, db, "alice")
	other := testutil.CreateTestUser(t, db, "bob")

	a := testutil.CreateTestImage(t, db, owner.ID, "dall-e-3", models.VisibilityUnlisted)
	b := testutil.CreateTestImage(t, db, owner.ID, "dall-e-3", models.VisibilityUnlisted)
	foreign := testutil.CreateTestImage(t, db, other.ID, "dall-e-3", models.VisibilityUnlisted)

	result, err := database.SetVisibilityBulk(
		db, owner.ID,
		[]int64{a.ID, b.ID, foreign.ID, 9999},
		models.VisibilityPublic,
	)
	if err != nil {
		t.Fatalf("SetVisibilityBulk: %v", err)
	}

	if result.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", result.SuccessCount)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("Errors = %v, want 2 entries", result.Errors)
	}
	// Each error names the failing item.
	joined := strings.Join(result.Errors, "\n")
	if !strings.Contains(joined, "9999") {
		t.Errorf("errors should name the missing id: %v", result.Errors)
	}

	// The foreign image must be untouched.
	got, err := database.GetImageByID(db, foreign.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Visibility != models.VisibilityUnlisted {
		t.Errorf("foreign image visibility changed to %q", got.Visibility)
	}
}

func TestDeleteImage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := testutil.CreateTestUser(t, db, "alice")
	other := testutil.CreateTestUser(t, db, "bob")

	thumbURL := "https://cdn.test/thumb.jpg"
	img := testutil.SampleImage(owner.ID, models.VisibilityPublic)
	img.ThumbnailURL = &thumbURL
	if err := database.CreateImage(db, img); err != nil {
		t.Fatal(err)
	}

	if _, err := database.DeleteImage(db, other.ID, img.ID); !errors.Is(err, database.ErrNotOwner) {
		t.Errorf("non-owner err = %v, want ErrNotOwner", err)
	}

	keys, err := database.DeleteImage(db, owner.ID, img.ID)
	if err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("keys = %v, want media key plus thumbnail key", keys)
	}
	if keys[0] != img.StorageKey {
		t.Errorf("keys[0] = %q, want %q", keys[0], img.StorageKey)
	}
	if keys[1] != img.StorageKey+"_thumb.jpg" {
		t.Errorf("keys[1] = %q, want derived thumbnail key", keys[1])
	}

	if _, err := database.GetImageByID(db, img.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("image still retrievable after delete: %v", err)
	}

	if _, err := database.DeleteImage(db, owner.ID, img.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestDeleteImageWithoutThumbnail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := testutil.CreateTestUser(t, db, "alice")
	img := testutil.CreateTestImage(t, db, owner.ID, "dall-e-3", models.VisibilityPublic)

	keys, err := database.DeleteImage(db, owner.ID, img.ID)
	if err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	if len(keys) != 1 || keys[0] != img.StorageKey {
		t.Errorf("keys = %v, want only the media key", keys)
	}
}

func TestDeleteImagesBulk(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := testutil.CreateTestUser(t, db, "alice")

	a := testutil.CreateTestImage(t, db, owner.ID, "dall-e-3", models.VisibilityPublic)
	b := testutil.CreateTestImage(t, db, owner.ID, "dall-e-3", models.VisibilityUnlisted)

	result, keys := database.DeleteImagesBulk(db, owner.ID, []int64{a.ID, b.ID, 9999})

	if result.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", result.SuccessCount)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "9999") {
		t.Errorf("Errors = %v, want one entry naming id 9999", result.Errors)
	}
	if len(keys) != 2 {
		t.Errorf("keys = %v, want the two media keys", keys)
	}

	count, err := database.CountImages(db)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("CountImages = %d, want 0", count)
	}
}
