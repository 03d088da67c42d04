package thumbnail

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 144, B: 255, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDimensions(t *testing.T) {
	data := encodePNG(t, 320, 200)

	w, h, err := Dimensions(data)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 320 || h != 200 {
		t.Errorf("dimensions = %dx%d, want 320x200", w, h)
	}
}

func TestDimensionsGarbage(t *testing.T) {
	if _, _, err := Dimensions([]byte("not an image")); err == nil {
		t.Error("expected error for undecodable data")
	}
}

func TestFromImage(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{"square", 128, 128},
		{"landscape", 256, 96},
		{"portrait", 96, 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thumb, err := FromImage(encodePNG(t, tt.width, tt.height), 64)
			if err != nil {
				t.Fatalf("FromImage: %v", err)
			}

			decoded, err := jpeg.Decode(bytes.NewReader(thumb))
			if err != nil {
				t.Fatalf("thumbnail is not valid JPEG: %v", err)
			}
			bounds := decoded.Bounds()
			if bounds.Dx() != 64 || bounds.Dy() != 64 {
				t.Errorf("thumbnail = %dx%d, want 64x64", bounds.Dx(), bounds.Dy())
			}
		})
	}
}

func TestFromImageGarbage(t *testing.T) {
	if _, err := FromImage([]byte("definitely not pixels"), 64); err == nil {
		t.Error("expected error for undecodable data")
	}
}
