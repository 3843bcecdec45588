package orienter

import (
	"context"
	"math/rand/v2"

	"github.com/kozaktomas/face-orienter/internal/landmark"
	"go.uber.org/zap"
)

// PredictOrientation returns the predicted orientation label.
func (fo *FaceOrienter) PredictOrientation() Orientation {
	return fo.Predict(context.Background()).Orientation
}

// Predict infers the orientation from the landmark geometry. Without
// landmarks it returns a guess with Confident set to false. The result is
// computed once and returned unchanged on later calls.
func (fo *FaceOrienter) Predict(ctx context.Context) Prediction {
	if fo.predicted != nil {
		return *fo.predicted
	}

	var p Prediction
	if fo.landmarks == nil {
		p = fo.guess(ctx)
	} else {
		p = Prediction{
			Orientation: Infer(fo.landmarks, fo.rotations),
			Confident:   true,
			Source:      SourceLandmarks,
		}
	}
	p.Rotations = fo.rotations

	fo.predicted = &p
	return p
}

// Infer applies the eye/nose rule to a landmark set found after the given
// number of clockwise quarter turns.
//
// When the nose lies horizontally between the eyes the face is upright
// (nose below the eye line) or upside down. Otherwise the face lies on its
// side and the nose position relative to the eye midpoint picks the side.
func Infer(set landmark.Set, rotations int) Orientation {
	eyeL := landmark.Center(set.LeftEyePoints())
	eyeR := landmark.Center(set.RightEyePoints())
	nose := set.Nose()

	var local int
	if eyeL.X >= nose.X && nose.X >= eyeR.X {
		if float64(nose.Y) >= float64(eyeL.Y+eyeR.Y)/2 {
			local = 0
		} else {
			local = 2
		}
	} else {
		if float64(nose.X) >= float64(eyeL.X+eyeR.X)/2 {
			local = 3
		} else {
			local = 1
		}
	}

	return orientations[((rotations+local)%4+4)%4]
}

// guess picks an orientation for images without a detected face.
func (fo *FaceOrienter) guess(ctx context.Context) Prediction {
	if fo.fallback != nil {
		label, err := fo.fallback.GuessOrientation(ctx, fo.img)
		if err == nil {
			var o Orientation
			if o, err = ParseOrientation(label); err == nil {
				return Prediction{Orientation: o, Source: fo.fallback.Name()}
			}
		}
		fo.logger.Warn("fallback guess failed, using random orientation",
			zap.String("fallback", fo.fallback.Name()),
			zap.Error(err),
		)
	}

	return Prediction{Orientation: orientations[fo.intN(len(orientations))], Source: SourceRandom}
}

func (fo *FaceOrienter) intN(n int) int {
	if fo.rand != nil {
		return fo.rand.IntN(n)
	}
	return rand.IntN(n)
}
