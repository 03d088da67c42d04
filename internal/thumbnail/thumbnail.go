// Package thumbnail produces small JPEG previews from uploaded media.
//
// Image thumbnails are decoded, center-cropped square and downscaled in
// process. Video thumbnails shell out to ffmpeg to grab a single frame;
// a missing ffmpeg binary degrades to no thumbnail rather than an error
// at startup.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os/exec"
	"time"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 80

// Dimensions reports the pixel width and height of an encoded image
// without decoding the full bitmap.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read image dimensions: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// FromImage decodes data, center-crops it square, scales it down to
// size x size and re-encodes as JPEG.
func FromImage(data []byte, size int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("image has zero dimension")
	}

	// Center-crop to a square before scaling so thumbnails keep a
	// uniform shape regardless of source aspect ratio.
	side := w
	if h < side {
		side = h
	}
	x0 := bounds.Min.X + (w-side)/2
	y0 := bounds.Min.Y + (h-side)/2
	crop := image.Rect(x0, y0, x0+side, y0+side)

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// FromVideo extracts a single frame at the given offset using ffmpeg and
// returns it as a size x size JPEG. Input and output are piped; nothing
// touches disk.
func FromVideo(ctx context.Context, data []byte, offset time.Duration, size int) ([]byte, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not available: %w", err)
	}

	offsetArg := fmt.Sprintf("%.3f", offset.Seconds())
	filter := fmt.Sprintf("crop='min(iw,ih)':'min(iw,ih)',scale=%d:%d", size, size)

	cmd := exec.CommandContext(ctx, ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-ss", offsetArg,
		"-i", "pipe:0",
		"-frames:v", "1",
		"-vf", filter,
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("frame extraction failed: %w (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("frame extraction produced no output")
	}
	return stdout.Bytes(), nil
}
