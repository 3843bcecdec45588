package orienter

import (
	"fmt"
	"strings"
)

// Orientation is the correction an image needs to become upright.
type Orientation string

const (
	Down  Orientation = "down"  // already upright
	Right Orientation = "right" // needs one clockwise quarter turn
	Up    Orientation = "up"    // upside down
	Left  Orientation = "left"  // needs three clockwise quarter turns
)

// orientations is indexed by the number of clockwise quarter turns needed.
var orientations = [4]Orientation{Down, Right, Up, Left}

// All returns every orientation in quarter-turn order.
func All() []Orientation {
	return orientations[:]
}

// Rotations returns the clockwise quarter turns that fix the image.
func (o Orientation) Rotations() int {
	for i, v := range orientations {
		if v == o {
			return i
		}
	}
	return 0
}

// Valid reports whether o is one of the four labels.
func (o Orientation) Valid() bool {
	for _, v := range orientations {
		if v == o {
			return true
		}
	}
	return false
}

func (o Orientation) String() string {
	return string(o)
}

// ParseOrientation parses a label case-insensitively.
func ParseOrientation(s string) (Orientation, error) {
	o := Orientation(strings.ToLower(strings.TrimSpace(s)))
	if !o.Valid() {
		return "", fmt.Errorf("unknown orientation %q", s)
	}
	return o, nil
}

// Prediction sources.
const (
	SourceLandmarks = "landmarks"
	SourceRandom    = "random"
)

// Prediction is the memoized outcome of orientation inference.
// Confident is false whenever no landmarks were found and the orientation
// came from a fallback guess.
type Prediction struct {
	Orientation Orientation `json:"orientation"`
	Confident   bool        `json:"confident"`
	Source      string      `json:"source"`
	Rotations   int         `json:"rotations"`
}
