package orienter

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/kozaktomas/face-orienter/internal/imageutil"
)

// Fixed returns a new image with the predicted correction applied to the
// original, unrotated source image.
func (fo *FaceOrienter) Fixed(ctx context.Context) (image.Image, error) {
	p := fo.Predict(ctx)
	return imageutil.Rotate(fo.img, float64(p.Orientation.Rotations()*90))
}

// FixOrientation writes the corrected image to path, in the format implied
// by the path's extension.
func (fo *FaceOrienter) FixOrientation(ctx context.Context, path string) error {
	fixed, err := fo.Fixed(ctx)
	if err != nil {
		return err
	}
	if err := imageutil.Save(fixed, path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return nil
}

// Encode writes the corrected image to w in the given format.
func (fo *FaceOrienter) Encode(ctx context.Context, w io.Writer, format imaging.Format) error {
	fixed, err := fo.Fixed(ctx)
	if err != nil {
		return err
	}
	if err := imageutil.Encode(w, fixed, format); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}
