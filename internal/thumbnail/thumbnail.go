// Package thumbnail post-processes the still frame extracted from a source.
package thumbnail

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"streampack/internal/fileutil"
)

const jpegQuality = 85

// Info describes a normalized thumbnail.
type Info struct {
	Width   int
	Height  int
	Resized bool
}

// Normalize applies EXIF orientation, shrinks the image to maxWidth when it
// is wider, and rewrites path as JPEG. maxWidth <= 0 disables resizing.
func Normalize(path string, maxWidth int) (Info, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Info{}, fmt.Errorf("open thumbnail: %w", err)
	}

	resized := false
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
		resized = true
	}

	if err := save(path, img); err != nil {
		return Info{}, err
	}
	bounds := img.Bounds()
	return Info{Width: bounds.Dx(), Height: bounds.Dy(), Resized: resized}, nil
}

func save(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}
	return nil
}
