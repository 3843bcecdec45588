// Package imageutil provides the raster plumbing used by the orienter:
// canvas-expanding rotation, grayscale conversion and extension-driven codecs.
package imageutil

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var (
	// ErrInvalidInput is returned when an image is missing or cannot be decoded.
	ErrInvalidInput = errors.New("invalid input image")
	// ErrEmptyImage is returned for images with zero width or height.
	ErrEmptyImage = errors.New("empty image")
)

// Rotate rotates img clockwise by angle degrees about its center.
// The output canvas is enlarged so that no content is clipped:
//
//	newWidth  = round(h*|sin| + w*|cos|)
//	newHeight = round(h*|cos| + w*|sin|)
//
// Quarter turns are lossless. Grayscale input stays grayscale, everything
// else is returned as NRGBA. The source image is never modified.
func Rotate(img image.Image, angle float64) (image.Image, error) {
	if isNil(img) || math.IsNaN(angle) || math.IsInf(angle, 0) {
		return nil, ErrInvalidInput
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}

	sin, cos, quarter := sinCos(angle)
	newWidth, newHeight := canvasSize(width, height, sin, cos)

	dst := newCanvas(img, newWidth, newHeight)
	m := rotationMatrix(bounds, newWidth, newHeight, sin, cos)

	var interp draw.Interpolator = draw.BiLinear
	if quarter {
		interp = draw.NearestNeighbor
	}
	interp.Transform(dst, m, img, bounds, draw.Src, nil)

	return dst, nil
}

// RotatePoints maps pixel positions of a width x height image through the
// same transform Rotate applies, so that points follow the rotated content.
func RotatePoints(points []image.Point, width, height int, angle float64) []image.Point {
	sin, cos, _ := sinCos(angle)
	newWidth, newHeight := canvasSize(width, height, sin, cos)
	m := rotationMatrix(image.Rect(0, 0, width, height), newWidth, newHeight, sin, cos)

	out := make([]image.Point, len(points))
	for i, p := range points {
		// Map pixel centers, then back to the containing pixel.
		x := float64(p.X) + 0.5
		y := float64(p.Y) + 0.5
		out[i] = image.Point{
			X: int(math.Floor(m[0]*x + m[1]*y + m[2])),
			Y: int(math.Floor(m[3]*x + m[4]*y + m[5])),
		}
	}
	return out
}

// sinCos returns the sine and cosine of a clockwise angle in degrees.
// Multiples of 90 degrees get exact values so that quarter turns do not
// accumulate floating point drift.
func sinCos(angle float64) (sin, cos float64, quarter bool) {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	switch a {
	case 0:
		return 0, 1, true
	case 90:
		return 1, 0, true
	case 180:
		return 0, -1, true
	case 270:
		return -1, 0, true
	}
	rad := a * math.Pi / 180
	return math.Sin(rad), math.Cos(rad), false
}

func canvasSize(width, height int, sin, cos float64) (int, int) {
	s, c := math.Abs(sin), math.Abs(cos)
	w, h := float64(width), float64(height)
	return int(math.Round(h*s + w*c)), int(math.Round(h*c + w*s))
}

// rotationMatrix builds the source-to-destination affine transform: rotate
// about the source center, then translate that center to the middle of the
// new canvas. With y pointing down a positive angle turns clockwise.
func rotationMatrix(src image.Rectangle, newWidth, newHeight int, sin, cos float64) f64.Aff3 {
	cx := float64(src.Min.X) + float64(src.Dx())/2
	cy := float64(src.Min.Y) + float64(src.Dy())/2
	ncx := float64(newWidth) / 2
	ncy := float64(newHeight) / 2

	return f64.Aff3{
		cos, -sin, ncx - cos*cx + sin*cy,
		sin, cos, ncy - sin*cx - cos*cy,
	}
}

func newCanvas(src image.Image, width, height int) draw.Image {
	r := image.Rect(0, 0, width, height)
	if _, ok := src.(*image.Gray); ok {
		return image.NewGray(r)
	}
	return image.NewNRGBA(r)
}

// isNil reports whether img is nil or a typed nil pointer of a known
// concrete image type.
func isNil(img image.Image) bool {
	switch v := img.(type) {
	case nil:
		return true
	case *image.Gray:
		return v == nil
	case *image.RGBA:
		return v == nil
	case *image.NRGBA:
		return v == nil
	case *image.YCbCr:
		return v == nil
	case *image.Paletted:
		return v == nil
	}
	return false
}
