package frost

import (
	"fmt"
	"image"
	"io"
	"os"

	// Registered decoders for LoadImage.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes a PNG, JPEG, GIF, BMP, TIFF or WebP stream into a
// straight-alpha pixmap.
func DecodeImage(r io.Reader) (*Pixmap, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("frost: decode image: %w", err)
	}
	Logger().Debug("frost: image decoded", "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return FromImage(img), nil
}

// LoadImage reads and decodes an image file.
func LoadImage(path string) (*Pixmap, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, fmt.Errorf("frost: open image: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return DecodeImage(f)
}
