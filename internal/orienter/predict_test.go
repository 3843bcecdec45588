package orienter

import (
	"image"
	"testing"

	"github.com/kozaktomas/face-orienter/internal/landmark"
)

func set(leftEye, rightEye, nose image.Point) landmark.Set {
	return landmark.NewSet([]image.Point{leftEye, leftEye, rightEye, rightEye, nose})
}

func TestInfer(t *testing.T) {
	tests := []struct {
		name      string
		set       landmark.Set
		rotations int
		want      Orientation
	}{
		{
			name: "upright",
			set:  set(image.Pt(70, 30), image.Pt(30, 30), image.Pt(50, 50)),
			want: Down,
		},
		{
			name: "nose above eye line",
			set:  set(image.Pt(70, 50), image.Pt(30, 50), image.Pt(50, 30)),
			want: Up,
		},
		{
			name: "nose on eye line",
			set:  set(image.Pt(70, 40), image.Pt(30, 40), image.Pt(50, 40)),
			want: Down,
		},
		{
			name: "nose left of eyes",
			set:  set(image.Pt(60, 70), image.Pt(60, 30), image.Pt(40, 50)),
			want: Right,
		},
		{
			name: "nose right of eyes",
			set:  set(image.Pt(40, 30), image.Pt(40, 70), image.Pt(60, 50)),
			want: Left,
		},
		{
			name:      "upright after three turns",
			set:       set(image.Pt(70, 30), image.Pt(30, 30), image.Pt(50, 50)),
			rotations: 3,
			want:      Left,
		},
		{
			name:      "upside down after two turns",
			set:       set(image.Pt(70, 50), image.Pt(30, 50), image.Pt(50, 30)),
			rotations: 2,
			want:      Down,
		},
		{
			name:      "sideways wraps around",
			set:       set(image.Pt(40, 30), image.Pt(40, 70), image.Pt(60, 50)),
			rotations: 3,
			want:      Up,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Infer(tt.set, tt.rotations); got != tt.want {
				t.Errorf("Infer() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOrientation(t *testing.T) {
	tests := []struct {
		input     string
		want      Orientation
		rotations int
		wantErr   bool
	}{
		{input: "down", want: Down, rotations: 0},
		{input: "Right", want: Right, rotations: 1},
		{input: " UP ", want: Up, rotations: 2},
		{input: "left", want: Left, rotations: 3},
		{input: "", wantErr: true},
		{input: "north", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOrientation(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseOrientation(%q) = %s, want %s", tt.input, got, tt.want)
			}
			if got.Rotations() != tt.rotations {
				t.Errorf("%s.Rotations() = %d, want %d", got, got.Rotations(), tt.rotations)
			}
		})
	}

	if len(All()) != 4 {
		t.Errorf("All() returned %d labels, want 4", len(All()))
	}
}
