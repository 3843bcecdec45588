// Package landmark converts detector output into dense point arrays and the
// fixed 5-point layout the orientation heuristic reads.
package landmark

import (
	"errors"
	"image"
)

// ErrInvalidShape is returned when a detector shape cannot be read.
var ErrInvalidShape = errors.New("invalid landmark shape")

// Layout indices of the 5-point shape.
const (
	LeftEye   = 0
	LeftEye2  = 1
	RightEye  = 2
	RightEye2 = 3
	NoseTip   = 4
	NumPoints = 5
)

// Shape is a detector result exposing indexed landmark points.
type Shape interface {
	NumParts() int
	Part(i int) image.Point
}

// Set is a complete 5-point landmark layout. A nil Set means no landmarks.
type Set []image.Point

// Points is a Shape backed by a plain slice.
type Points []image.Point

func (p Points) NumParts() int          { return len(p) }
func (p Points) Part(i int) image.Point { return p[i] }

// ToPointArray copies every part of shape into a slice, keeping the source
// order. The number of points is not checked against any layout.
func ToPointArray(shape Shape) ([]image.Point, error) {
	if shape == nil {
		return nil, ErrInvalidShape
	}
	if p, ok := shape.(Points); ok && p == nil {
		return nil, ErrInvalidShape
	}

	n := shape.NumParts()
	if n < 0 {
		return nil, ErrInvalidShape
	}

	points := make([]image.Point, n)
	for i := range n {
		points[i] = shape.Part(i)
	}
	return points, nil
}

// NewSet returns the first NumPoints points as a Set, or nil when fewer
// points are available.
func NewSet(points []image.Point) Set {
	if len(points) < NumPoints {
		return nil
	}
	set := make(Set, NumPoints)
	copy(set, points[:NumPoints])
	return set
}

// LeftEyePoints returns the left eye sub-slice of the layout.
func (s Set) LeftEyePoints() []image.Point {
	return s[LeftEye : LeftEye+1]
}

// RightEyePoints returns the right eye sub-slice of the layout.
func (s Set) RightEyePoints() []image.Point {
	return s[RightEye : RightEye+1]
}

// Nose returns the nose tip.
func (s Set) Nose() image.Point {
	return s[NoseTip]
}

// Center returns the integer mean of points, truncating toward zero.
func Center(points []image.Point) image.Point {
	if len(points) == 0 {
		return image.Point{}
	}
	var sx, sy int
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	return image.Point{X: sx / len(points), Y: sy / len(points)}
}
