package models

import "testing"

func TestVisibilityValid(t *testing.T) {
	tests := []struct {
		v    Visibility
		want bool
	}{
		{VisibilityPublic, true},
		{VisibilityUnlisted, true},
		{"private", false},
		{"", false},
		{"Public", false},
	}
	for _, tt := range tests {
		if got := tt.v.Valid(); got != tt.want {
			t.Errorf("Visibility(%q).Valid() = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestAspectRatio(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		want          float64
	}{
		{"square", 1024, 1024, 1.0},
		{"landscape", 1920, 1080, 1920.0 / 1080.0},
		{"portrait normalizes", 1080, 1920, 1920.0 / 1080.0},
		{"zero width", 0, 1080, 0},
		{"zero height", 1920, 0, 0},
		{"negative", -10, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AspectRatio(tt.width, tt.height); got != tt.want {
				t.Errorf("AspectRatio(%d, %d) = %v, want %v", tt.width, tt.height, got, tt.want)
			}
		})
	}
}

func TestAspectRatioAlwaysAtLeastOne(t *testing.T) {
	// The canonical ratio is orientation-independent, so swapped
	// dimensions must agree.
	if AspectRatio(640, 480) != AspectRatio(480, 640) {
		t.Error("aspect ratio must not depend on orientation")
	}
}
