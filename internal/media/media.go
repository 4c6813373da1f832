// Package media normalizes inbound images before they are handed to the
// agent: oversized photos are downscaled and re-encoded as JPEG so the
// model-facing payload stays small and in a format every provider accepts.
package media

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	// maxDimension is the longest edge after normalization.
	maxDimension = 2048

	// jpegQuality balances size against visible artifacts.
	jpegQuality = 85
)

// NormalizeImage downscales and re-encodes an image file, returning the path
// of the normalized copy. Images already within bounds and in JPEG format are
// returned unchanged. The original file is left in place.
func NormalizeImage(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image %s: %w", filepath.Base(path), err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	isJPEG := strings.EqualFold(filepath.Ext(path), ".jpg") || strings.EqualFold(filepath.Ext(path), ".jpeg")
	if w <= maxDimension && h <= maxDimension && isJPEG {
		return path, nil
	}

	if w > maxDimension || h > maxDimension {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	out, err := os.CreateTemp("", "clawrelay_img_*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	name := out.Name()
	out.Close()

	if err := imaging.Save(img, name, imaging.JPEGQuality(jpegQuality)); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("encode image: %w", err)
	}

	newBounds := img.Bounds()
	slog.Debug("normalized inbound image",
		"src", filepath.Base(path),
		"from", fmt.Sprintf("%dx%d", w, h),
		"to", fmt.Sprintf("%dx%d", newBounds.Dx(), newBounds.Dy()),
	)
	return name, nil
}

// Dimensions reports the pixel size of an image file.
func Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
