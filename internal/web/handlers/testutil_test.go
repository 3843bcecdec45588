package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/kozaktomas/face-orienter/internal/imageutil"
	"github.com/kozaktomas/face-orienter/internal/landmark"
	"github.com/kozaktomas/face-orienter/internal/orienter"
)

// fixedFaces reports the same boxes for every image.
type fixedFaces struct {
	boxes []image.Rectangle
}

func (d fixedFaces) DetectFaces(context.Context, *image.Gray, int) ([]image.Rectangle, error) {
	return d.boxes, nil
}

// fixedLandmarks returns an upright 5-point shape.
type fixedLandmarks struct{}

func (fixedLandmarks) DetectLandmarks(context.Context, *image.Gray, image.Rectangle) (landmark.Shape, error) {
	return landmark.Points{{70, 30}, {65, 30}, {30, 30}, {35, 30}, {50, 50}}, nil
}

func faceModels() orienter.Models {
	return orienter.Models{
		Faces:     fixedFaces{boxes: []image.Rectangle{image.Rect(20, 20, 80, 60)}},
		Landmarks: fixedLandmarks{},
	}
}

func noFaceModels() orienter.Models {
	return orienter.Models{Faces: fixedFaces{}, Landmarks: fixedLandmarks{}}
}

type staticFallback struct {
	label string
}

func (f staticFallback) Name() string { return "static" }

func (f staticFallback) GuessOrientation(context.Context, image.Image) (string, error) {
	return f.label, nil
}

// fakeRecorder captures handler outcomes.
type fakeRecorder struct {
	predictions []orienter.Prediction
	failures    []string
}

func (r *fakeRecorder) ObservePrediction(p orienter.Prediction, _ time.Duration) {
	r.predictions = append(r.predictions, p)
}

func (r *fakeRecorder) ObserveFailure(reason string) {
	r.failures = append(r.failures, reason)
}

// testImage returns a 100x80 image with a gradient so encoders have
// something to compress.
func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 80))
	for y := range 80 {
		for x := range 100 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 2), G: uint8(y * 3), B: 90, A: 255})
		}
	}
	return img
}

func encodeImage(t *testing.T, img image.Image, format imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imageutil.Encode(&buf, img, format); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// uploadRequest builds a multipart POST with data in field.
func uploadRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/orient", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d: %s", expected, recorder.Code, recorder.Body.String())
	}
}

func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	if ct := recorder.Header().Get("Content-Type"); ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON error: %v", err)
	}
	if result["error"] == "" {
		t.Error("expected non-empty error message")
	}
	return result["error"]
}
