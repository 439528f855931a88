package thumbnail

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func writeImage(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thumbnail.jpg")
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	return path
}

func TestNormalizeShrinksWideImages(t *testing.T) {
	path := writeImage(t, 1920, 1080)
	info, err := Normalize(path, 1280)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !info.Resized || info.Width != 1280 || info.Height != 720 {
		t.Fatalf("unexpected info %+v", info)
	}
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 1280, 720) {
		t.Fatalf("stored bounds = %v", img.Bounds())
	}
}

func TestNormalizeKeepsSmallImages(t *testing.T) {
	path := writeImage(t, 640, 360)
	info, err := Normalize(path, 1280)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if info.Resized || info.Width != 640 {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestNormalizeMissingFile(t *testing.T) {
	if _, err := Normalize(filepath.Join(t.TempDir(), "missing.jpg"), 100); err == nil {
		t.Fatal("expected error")
	}
}
