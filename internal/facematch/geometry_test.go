package facematch

import (
	"image"
	"math"
	"testing"
)

func TestComputeIoU(t *testing.T) {
	tests := []struct {
		name     string
		bbox1    []float64
		bbox2    []float64
		expected float64
	}{
		{
			name:     "identical boxes",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{0, 0, 10, 10},
			expected: 1.0,
		},
		{
			name:     "no overlap",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{20, 20, 30, 30},
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			bbox1:    []float64{0, 0, 10, 10},
			bbox2:    []float64{5, 5, 15, 15},
			expected: 25.0 / 175.0, // intersection=25, union=100+100-25=175
		},
		{
			name:     "one inside other",
			bbox1:    []float64{0, 0, 20, 20},
			bbox2:    []float64{5, 5, 15, 15},
			expected: 100.0 / 400.0, // intersection=100, union=400 (larger box)
		},
		{
			name:     "invalid bbox1",
			bbox1:    []float64{0, 0, 10},
			bbox2:    []float64{0, 0, 10, 10},
			expected: 0.0,
		},
		{
			name:     "empty bboxes",
			bbox1:    []float64{},
			bbox2:    []float64{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeIoU(tt.bbox1, tt.bbox2)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ComputeIoU(%v, %v) = %v, want %v", tt.bbox1, tt.bbox2, result, tt.expected)
			}
		})
	}
}

func TestRectToBBox(t *testing.T) {
	tests := []struct {
		name     string
		rect     image.Rectangle
		expected []float64
	}{
		{
			name:     "simple",
			rect:     image.Rect(10, 20, 30, 40),
			expected: []float64{10, 20, 30, 40},
		},
		{
			name:     "swapped corners",
			rect:     image.Rectangle{Min: image.Pt(30, 40), Max: image.Pt(10, 20)},
			expected: []float64{10, 20, 30, 40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RectToBBox(tt.rect)
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("RectToBBox(%v) = %v, want %v", tt.rect, result, tt.expected)
					break
				}
			}
		})
	}
}

func TestBBoxToRect(t *testing.T) {
	tests := []struct {
		name     string
		bbox     []float64
		expected image.Rectangle
	}{
		{
			name:     "integer box",
			bbox:     []float64{1, 2, 3, 4},
			expected: image.Rect(1, 2, 3, 4),
		},
		{
			name:     "rounds outwards",
			bbox:     []float64{1.6, 2.2, 3.1, 4.9},
			expected: image.Rect(1, 2, 4, 5),
		},
		{
			name:     "invalid bbox",
			bbox:     []float64{1, 2},
			expected: image.Rectangle{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := BBoxToRect(tt.bbox); result != tt.expected {
				t.Errorf("BBoxToRect(%v) = %v, want %v", tt.bbox, result, tt.expected)
			}
		})
	}
}

func TestBestMatch(t *testing.T) {
	candidates := [][]float64{
		{100, 100, 120, 120},
		{0, 0, 12, 12},
		{2, 2, 10, 10},
	}

	tests := []struct {
		name     string
		target   []float64
		minIoU   float64
		expected int
	}{
		{
			name:     "best overlap wins",
			target:   []float64{0, 0, 10, 10},
			minIoU:   0.1,
			expected: 1,
		},
		{
			name:     "exact box",
			target:   []float64{100, 100, 120, 120},
			minIoU:   0.5,
			expected: 0,
		},
		{
			name:     "below threshold",
			target:   []float64{50, 50, 60, 60},
			minIoU:   0.1,
			expected: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, _ := BestMatch(candidates, tt.target, tt.minIoU)
			if idx != tt.expected {
				t.Errorf("BestMatch(%v) = %d, want %d", tt.target, idx, tt.expected)
			}
		})
	}

	if idx, _ := BestMatch(nil, []float64{0, 0, 1, 1}, 0); idx != -1 {
		t.Errorf("BestMatch(nil) = %d, want -1", idx)
	}
}
