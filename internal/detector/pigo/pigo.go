// Package pigo detects faces and the 5-point landmark layout with the pure Go
// pixel intensity comparison cascades of github.com/esimov/pigo.
//
// The model directory holds the cascades shipped with pigo:
//
//	<dir>/facefinder     face classifier
//	<dir>/puploc         pupil localizer
//	<dir>/lps/<name>     facial landmark cascades (flploc)
package pigo

import (
	"cmp"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"slices"

	pg "github.com/esimov/pigo/core"
	"github.com/kozaktomas/face-orienter/internal/config"
	"github.com/kozaktomas/face-orienter/internal/landmark"
)

const (
	faceCascadeFile  = "facefinder"
	pupilCascadeFile = "puploc"
	landmarkDir      = "lps"

	// smallest face size the cascade can classify
	minCascadeSize = 20
)

// Detector implements face and landmark detection on unpacked cascades.
// The cascades are read-only after Load, so a Detector may be shared.
type Detector struct {
	faces  *pg.Pigo
	pupils *pg.PuplocCascade
	nose   *pg.PuplocCascade
	params config.PigoConfig
}

// Load unpacks the cascades found in dir.
func Load(dir string, params config.PigoConfig) (*Detector, error) {
	data, err := os.ReadFile(filepath.Join(dir, faceCascadeFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read face cascade: %w", err)
	}
	faces, err := pg.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack face cascade: %w", err)
	}

	pupils, err := unpackPuploc(filepath.Join(dir, pupilCascadeFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load pupil cascade: %w", err)
	}

	nose, err := unpackPuploc(filepath.Join(dir, landmarkDir, params.NoseCascade))
	if err != nil {
		return nil, fmt.Errorf("failed to load landmark cascade %q: %w", params.NoseCascade, err)
	}

	return &Detector{faces: faces, pupils: pupils, nose: nose, params: params}, nil
}

func unpackPuploc(path string) (*pg.PuplocCascade, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return pg.NewPuplocCascade().UnpackCascade(data)
}

// DetectFaces returns face boxes ordered by detection score, best first.
// Each upsample step halves the smallest face size searched for.
func (d *Detector) DetectFaces(ctx context.Context, gray *image.Gray, upsample int) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := imageParams(gray)
	minSize, maxSize := sizeRange(d.params.MinSize, d.params.MaxSize, upsample, img.Cols, img.Rows)
	if maxSize < minSize {
		return nil, nil
	}

	dets := d.faces.RunCascade(pg.CascadeParams{
		MinSize:     minSize,
		MaxSize:     maxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: img,
	}, 0.0)
	dets = d.faces.ClusterDetections(dets, d.params.IoUThreshold)

	return faceBoxes(dets, float32(d.params.MinQuality)), nil
}

// DetectLandmarks locates both pupils and the nose tip inside box.
// Positions the cascades cannot localize fall back to the usual proportions
// of a frontal face inside its box.
func (d *Detector) DetectLandmarks(ctx context.Context, gray *image.Gray, box image.Rectangle) (landmark.Shape, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := imageParams(gray)
	row, col := (box.Min.Y+box.Max.Y)/2, (box.Min.X+box.Max.X)/2
	scale := float32(box.Dx())

	// pigo names eyes from the viewer's side: its left eye is on the image left.
	imgLeft := pg.Puploc{
		Row:      row - int(0.075*scale),
		Col:      col - int(0.175*scale),
		Scale:    scale * 0.25,
		Perturbs: d.params.Perturbs,
	}
	imgRight := pg.Puploc{
		Row:      row - int(0.075*scale),
		Col:      col + int(0.185*scale),
		Scale:    scale * 0.25,
		Perturbs: d.params.Perturbs,
	}

	leftEye := located(d.pupils.RunDetector(imgLeft, img, 0.0, false), imgLeft)
	rightEye := located(d.pupils.RunDetector(imgRight, img, 0.0, false), imgRight)

	noseGuess := pg.Puploc{Row: row + int(0.1*scale), Col: col}
	nose := located(d.nose.FindLandmarkPoints(leftEye, rightEye, img, d.params.Perturbs, false), noseGuess)

	return assemble(puplocPoint(rightEye), puplocPoint(leftEye), puplocPoint(nose)), nil
}

// located returns p when the cascade found a position and guess otherwise.
func located(p *pg.Puploc, guess pg.Puploc) *pg.Puploc {
	if p == nil || p.Row <= 0 || p.Col <= 0 {
		return &guess
	}
	return p
}

func puplocPoint(p *pg.Puploc) image.Point {
	return image.Pt(p.Col, p.Row)
}

// assemble builds the 5-point layout from the subject's eyes and nose.
// The subject's left eye appears on the image right in an upright photo.
func assemble(subjectLeft, subjectRight, nose image.Point) landmark.Points {
	mid := image.Pt((subjectLeft.X+subjectRight.X)/2, (subjectLeft.Y+subjectRight.Y)/2)
	return landmark.Points{subjectLeft, mid, subjectRight, mid, nose}
}

// imageParams exposes the gray pixels in the row-major layout pigo expects.
func imageParams(gray *image.Gray) pg.ImageParams {
	b := gray.Bounds()
	cols, rows := b.Dx(), b.Dy()

	pixels := gray.Pix
	if gray.Stride != cols || b.Min != (image.Point{}) {
		pixels = make([]uint8, 0, cols*rows)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			start := gray.PixOffset(b.Min.X, y)
			pixels = append(pixels, gray.Pix[start:start+cols]...)
		}
	}

	return pg.ImageParams{Pixels: pixels, Rows: rows, Cols: cols, Dim: cols}
}

// sizeRange clamps the configured face sizes to the image.
func sizeRange(minSize, maxSize, upsample, cols, rows int) (int, int) {
	for range upsample {
		minSize /= 2
	}
	minSize = max(minSize, minCascadeSize)
	maxSize = min(maxSize, cols, rows)
	return minSize, maxSize
}

// faceBoxes converts detections above minQuality to boxes, best score first.
func faceBoxes(dets []pg.Detection, minQuality float32) []image.Rectangle {
	kept := make([]pg.Detection, 0, len(dets))
	for _, det := range dets {
		if det.Q >= minQuality {
			kept = append(kept, det)
		}
	}
	slices.SortStableFunc(kept, func(a, b pg.Detection) int {
		return cmp.Compare(b.Q, a.Q)
	})

	boxes := make([]image.Rectangle, len(kept))
	for i, det := range kept {
		half := det.Scale / 2
		boxes[i] = image.Rect(det.Col-half, det.Row-half, det.Col+half, det.Row+half)
	}
	return boxes
}
