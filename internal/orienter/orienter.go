// Package orienter predicts and fixes the rotation of photos that contain a
// frontal face.
//
// Detection runs once when a FaceOrienter is built: the grayscale image is
// searched for faces, rotating it a quarter turn clockwise after every miss,
// up to MaxRotations times. Landmarks of the first face found are kept
// together with the number of rotations it took. The orientation itself is
// computed lazily from that geometry and memoized.
package orienter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"

	"github.com/kozaktomas/face-orienter/internal/imageutil"
	"github.com/kozaktomas/face-orienter/internal/landmark"
	"go.uber.org/zap"
)

// MaxRotations is the number of quarter turns tried after the first miss.
const MaxRotations = 3

// ErrWrite is returned when the corrected image cannot be written.
var ErrWrite = errors.New("cannot write image")

// FaceDetector finds face bounding boxes in a grayscale image.
// Implementations must be safe for concurrent use.
type FaceDetector interface {
	DetectFaces(ctx context.Context, gray *image.Gray, upsample int) ([]image.Rectangle, error)
}

// LandmarkDetector locates the 5-point landmark shape inside a face box.
// Implementations must be safe for concurrent use.
type LandmarkDetector interface {
	DetectLandmarks(ctx context.Context, gray *image.Gray, box image.Rectangle) (landmark.Shape, error)
}

// Models bundles the process-wide detectors. They are loaded once at start-up
// and shared read-only by every FaceOrienter.
type Models struct {
	Faces     FaceDetector
	Landmarks LandmarkDetector
}

// Fallback guesses an orientation label for images without landmarks.
type Fallback interface {
	Name() string
	GuessOrientation(ctx context.Context, img image.Image) (string, error)
}

// Option configures a FaceOrienter.
type Option func(*FaceOrienter)

// WithRand sets the random source used for the no-face guess.
func WithRand(r *rand.Rand) Option {
	return func(fo *FaceOrienter) {
		fo.rand = r
	}
}

// WithFallback replaces the random guess with fb when no face is found.
// Errors from fb are logged and the random guess is used instead.
func WithFallback(fb Fallback) Option {
	return func(fo *FaceOrienter) {
		fo.fallback = fb
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(fo *FaceOrienter) {
		fo.logger = logger
	}
}

// FaceOrienter holds one source image and its detection results.
// It is not safe for concurrent use.
type FaceOrienter struct {
	img       image.Image
	landmarks landmark.Set
	rotations int
	box       image.Rectangle

	predicted *Prediction

	rand     *rand.Rand
	fallback Fallback
	logger   *zap.Logger
}

// Open loads the image at path and runs face detection on it.
func Open(ctx context.Context, path string, models Models, opts ...Option) (*FaceOrienter, error) {
	img, err := imageutil.Load(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, img, models, opts...)
}

// New runs face and landmark detection on img. A missing face is not an
// error; detector failures are.
func New(ctx context.Context, img image.Image, models Models, opts ...Option) (*FaceOrienter, error) {
	if models.Faces == nil || models.Landmarks == nil {
		return nil, errors.New("face and landmark detectors are required")
	}

	gray, err := imageutil.Grayscale(img)
	if err != nil {
		return nil, err
	}

	fo := &FaceOrienter{
		img:    img,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(fo)
	}

	if err := fo.detect(ctx, models, gray); err != nil {
		return nil, err
	}
	return fo, nil
}

// detect searches for a face, rotating the grayscale buffer after each miss.
func (fo *FaceOrienter) detect(ctx context.Context, models Models, gray *image.Gray) error {
	rotations := 0
	boxes, err := models.Faces.DetectFaces(ctx, gray, 1)
	if err != nil {
		return fmt.Errorf("detecting faces: %w", err)
	}

	for len(boxes) == 0 && rotations < MaxRotations {
		if err := ctx.Err(); err != nil {
			return err
		}

		rotated, err := imageutil.Rotate(gray, 90)
		if err != nil {
			return fmt.Errorf("rotating detection buffer: %w", err)
		}
		gray = rotated.(*image.Gray)
		rotations++

		boxes, err = models.Faces.DetectFaces(ctx, gray, 0)
		if err != nil {
			return fmt.Errorf("detecting faces after %d rotations: %w", rotations, err)
		}
	}

	fo.rotations = rotations
	if len(boxes) == 0 {
		fo.logger.Debug("no face found", zap.Int("rotations", rotations))
		return nil
	}

	shape, err := models.Landmarks.DetectLandmarks(ctx, gray, boxes[0])
	if err != nil {
		return fmt.Errorf("detecting landmarks: %w", err)
	}
	points, err := landmark.ToPointArray(shape)
	if err != nil {
		return fmt.Errorf("reading landmarks: %w", err)
	}

	fo.box = boxes[0]
	fo.landmarks = landmark.NewSet(points)
	fo.logger.Debug("face found",
		zap.Int("rotations", rotations),
		zap.Stringer("box", boxes[0]),
		zap.Int("landmarks", len(points)),
	)
	return nil
}

// Image returns the source image.
func (fo *FaceOrienter) Image() image.Image {
	return fo.img
}

// Landmarks returns the 5-point landmark set, or nil when no face was found.
// Coordinates refer to the detection buffer after Rotations quarter turns.
func (fo *FaceOrienter) Landmarks() landmark.Set {
	return fo.landmarks
}

// Rotations returns the quarter turns applied before a face was found, or
// MaxRotations when none was.
func (fo *FaceOrienter) Rotations() int {
	return fo.rotations
}

// FaceBox returns the face box in the detection buffer.
func (fo *FaceOrienter) FaceBox() image.Rectangle {
	return fo.box
}

// FaceFound reports whether landmarks are available.
func (fo *FaceOrienter) FaceFound() bool {
	return fo.landmarks != nil
}
