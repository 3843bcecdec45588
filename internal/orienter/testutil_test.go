package orienter

import (
	"context"
	"errors"
	"image"
	"image/color"

	"github.com/kozaktomas/face-orienter/internal/landmark"
)

// Gray levels of the marker pixels that make up a synthetic face.
const (
	leftEyeLevel  = 200
	rightEyeLevel = 150
	noseLevel     = 100
)

// Upright marker positions. The subject's left eye is on the image right.
var (
	uprightLeftEye  = image.Point{X: 70, Y: 30}
	uprightRightEye = image.Point{X: 30, Y: 30}
	uprightNose     = image.Point{X: 50, Y: 50}
)

// faceImage returns a 100x80 black image with an upright marker face.
func faceImage() *image.NRGBA {
	img := uniformImage(100, 80, color.NRGBA{A: 255})
	setLevel(img, uprightLeftEye, leftEyeLevel)
	setLevel(img, uprightRightEye, rightEyeLevel)
	setLevel(img, uprightNose, noseLevel)
	return img
}

func uniformImage(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func setLevel(img *image.NRGBA, p image.Point, level uint8) {
	img.SetNRGBA(p.X, p.Y, color.NRGBA{R: level, G: level, B: level, A: 255})
}

// markers returns the positions of the marker pixels found in gray.
func markers(gray *image.Gray) (leftEye, rightEye, nose image.Point, ok bool) {
	found := 0
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			switch gray.GrayAt(x, y).Y {
			case leftEyeLevel:
				leftEye = image.Point{X: x, Y: y}
				found++
			case rightEyeLevel:
				rightEye = image.Point{X: x, Y: y}
				found++
			case noseLevel:
				nose = image.Point{X: x, Y: y}
				found++
			}
		}
	}
	return leftEye, rightEye, nose, found == 3
}

// uprightDetector behaves like a frontal face detector: it only sees the
// marker face when it is upright.
type uprightDetector struct {
	upsamples []int
}

func (d *uprightDetector) DetectFaces(_ context.Context, gray *image.Gray, upsample int) ([]image.Rectangle, error) {
	d.upsamples = append(d.upsamples, upsample)

	l, r, n, ok := markers(gray)
	if !ok {
		return nil, nil
	}
	if l.X > n.X && n.X > r.X && n.Y > l.Y && n.Y > r.Y {
		box := image.Rect(r.X, l.Y, l.X, n.Y).Inset(-10)
		return []image.Rectangle{box}, nil
	}
	return nil, nil
}

// markerLandmarks returns the marker positions in the 5-point layout.
type markerLandmarks struct{}

func (markerLandmarks) DetectLandmarks(_ context.Context, gray *image.Gray, _ image.Rectangle) (landmark.Shape, error) {
	l, r, n, ok := markers(gray)
	if !ok {
		return nil, errors.New("markers not found")
	}
	return landmark.Points{l, l.Add(image.Point{X: -5}), r, r.Add(image.Point{X: 5}), n}, nil
}

// shortLandmarks returns a shape with too few points.
type shortLandmarks struct{}

func (shortLandmarks) DetectLandmarks(context.Context, *image.Gray, image.Rectangle) (landmark.Shape, error) {
	return landmark.Points{{1, 1}, {2, 2}}, nil
}

// nilLandmarks returns no shape at all.
type nilLandmarks struct{}

func (nilLandmarks) DetectLandmarks(context.Context, *image.Gray, image.Rectangle) (landmark.Shape, error) {
	return nil, nil
}

type failingDetector struct {
	err error
}

func (d failingDetector) DetectFaces(context.Context, *image.Gray, int) ([]image.Rectangle, error) {
	return nil, d.err
}

func (d failingDetector) DetectLandmarks(context.Context, *image.Gray, image.Rectangle) (landmark.Shape, error) {
	return nil, d.err
}

// alwaysDetector reports a face everywhere.
type alwaysDetector struct{}

func (alwaysDetector) DetectFaces(_ context.Context, gray *image.Gray, _ int) ([]image.Rectangle, error) {
	return []image.Rectangle{gray.Bounds()}, nil
}

func testModels() (Models, *uprightDetector) {
	d := &uprightDetector{}
	return Models{Faces: d, Landmarks: markerLandmarks{}}, d
}

// fakeFallback returns a fixed label and counts calls.
type fakeFallback struct {
	label string
	err   error
	calls int
}

func (f *fakeFallback) Name() string { return "fake" }

func (f *fakeFallback) GuessOrientation(context.Context, image.Image) (string, error) {
	f.calls++
	return f.label, f.err
}
