package imageutil

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Load decodes the image stored at path. EXIF orientation tags are not
// applied; the pixels are taken as stored.
func Load(path string) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrInvalidInput, filepath.Base(path), err)
	}
	return img, nil
}

// Decode decodes an image from r.
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return img, nil
}

// Save writes img to path in the format implied by the path's extension.
func Save(img image.Image, path string) error {
	if _, err := FormatFromFilename(path); err != nil {
		return err
	}
	return imaging.Save(img, path)
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format imaging.Format) error {
	return imaging.Encode(w, img, format)
}

// FormatFromFilename returns the encoder format for a file name's extension.
func FormatFromFilename(name string) (imaging.Format, error) {
	f, err := imaging.FormatFromFilename(name)
	if err != nil {
		return -1, fmt.Errorf("unsupported output extension %q: %w", strings.ToLower(filepath.Ext(name)), err)
	}
	return f, nil
}

// ContentType returns the MIME type for an encoder format.
func ContentType(format imaging.Format) string {
	switch format {
	case imaging.JPEG:
		return "image/jpeg"
	case imaging.PNG:
		return "image/png"
	case imaging.GIF:
		return "image/gif"
	case imaging.TIFF:
		return "image/tiff"
	case imaging.BMP:
		return "image/bmp"
	}
	return "application/octet-stream"
}

// Grayscale returns a single-channel copy of img with its origin at (0, 0).
// Luma uses the ITU-R BT.601 weights of the standard color model.
func Grayscale(img image.Image) (*image.Gray, error) {
	if isNil(img) {
		return nil, ErrInvalidInput
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyImage
	}

	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray, nil
}
