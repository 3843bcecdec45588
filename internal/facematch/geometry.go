// Package facematch matches face boxes reported by different detectors.
package facematch

import (
	"image"
	"math"
)

// ComputeIoU calculates Intersection over Union between two bounding boxes.
// bbox1 and bbox2 are [x1, y1, x2, y2] in the same coordinate system.
func ComputeIoU(bbox1, bbox2 []float64) float64 {
	if len(bbox1) != 4 || len(bbox2) != 4 {
		return 0
	}

	x1 := max(bbox1[0], bbox2[0])
	y1 := max(bbox1[1], bbox2[1])
	x2 := min(bbox1[2], bbox2[2])
	y2 := min(bbox1[3], bbox2[3])

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	area1 := (bbox1[2] - bbox1[0]) * (bbox1[3] - bbox1[1])
	area2 := (bbox2[2] - bbox2[0]) * (bbox2[3] - bbox2[1])
	union := area1 + area2 - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// RectToBBox converts a rectangle to [x1, y1, x2, y2].
func RectToBBox(r image.Rectangle) []float64 {
	r = r.Canon()
	return []float64{float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)}
}

// BBoxToRect converts [x1, y1, x2, y2] to a rectangle, rounding outwards.
// Malformed boxes yield the zero rectangle.
func BBoxToRect(bbox []float64) image.Rectangle {
	if len(bbox) != 4 {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Floor(bbox[0])),
		int(math.Floor(bbox[1])),
		int(math.Ceil(bbox[2])),
		int(math.Ceil(bbox[3])),
	)
}

// BestMatch returns the index of the candidate with the highest IoU against
// target, or -1 when no candidate reaches minIoU.
func BestMatch(candidates [][]float64, target []float64, minIoU float64) (int, float64) {
	best, bestIoU := -1, 0.0
	for i, c := range candidates {
		iou := ComputeIoU(c, target)
		if iou >= minIoU && iou > bestIoU {
			best, bestIoU = i, iou
		}
	}
	return best, bestIoU
}
