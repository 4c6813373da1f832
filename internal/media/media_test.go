package media

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "in.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

func TestNormalizeImageDownscales(t *testing.T) {
	src := writePNG(t, 4000, 1000)

	out, err := NormalizeImage(src)
	if err != nil {
		t.Fatalf("NormalizeImage: %v", err)
	}
	t.Cleanup(func() { os.Remove(out) })

	if out == src {
		t.Fatal("expected a new file for oversized image")
	}
	if !strings.HasSuffix(out, ".jpg") {
		t.Errorf("expected jpg output, got %s", out)
	}

	w, h, err := Dimensions(out)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w > 2048 || h > 2048 {
		t.Errorf("image not downscaled: %dx%d", w, h)
	}
	// Aspect ratio preserved (4:1).
	if w != 2048 || h != 512 {
		t.Errorf("unexpected size %dx%d, want 2048x512", w, h)
	}
}

func TestNormalizeImageReencodesSmallPNG(t *testing.T) {
	src := writePNG(t, 100, 80)

	out, err := NormalizeImage(src)
	if err != nil {
		t.Fatalf("NormalizeImage: %v", err)
	}
	t.Cleanup(func() { os.Remove(out) })

	// PNG is re-encoded to JPEG even when within size bounds.
	if out == src {
		t.Fatal("expected re-encoded copy for png input")
	}
	w, h, err := Dimensions(out)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 100 || h != 80 {
		t.Errorf("size changed: %dx%d", w, h)
	}
}

func TestNormalizeImageMissingFile(t *testing.T) {
	if _, err := NormalizeImage(filepath.Join(t.TempDir(), "nope.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
