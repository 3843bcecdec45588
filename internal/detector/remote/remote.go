// Package remote detects faces through an HTTP face service running an
// InsightFace-style detector.
package remote

import (
	"bytes"
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kozaktomas/face-orienter/internal/config"
	"github.com/kozaktomas/face-orienter/internal/constants"
	"github.com/kozaktomas/face-orienter/internal/facematch"
	"github.com/kozaktomas/face-orienter/internal/imageutil"
	"github.com/kozaktomas/face-orienter/internal/landmark"
)

const (
	defaultServiceURL = "http://localhost:8000"
	defaultCacheSize  = 64
	detectEndpoint    = "/detect/face"
)

// Keypoint order of the service response.
const (
	kpsImageLeftEye = iota
	kpsImageRightEye
	kpsNose
	kpsMouthLeft
	kpsMouthRight
)

// ErrNoMatchingFace is returned when no face in the service response
// overlaps the requested box.
var ErrNoMatchingFace = errors.New("no detected face matches the box")

// FaceDetection represents a single detected face.
type FaceDetection struct {
	BBox      []float64   `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64     `json:"det_score"`
	Landmarks [][]float64 `json:"landmarks"` // 5 x [x, y]
}

// FaceResponse represents the response from the face detection endpoint.
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Client calls the face service. Responses are cached per pixel buffer so
// landmark lookups reuse the detection round trip.
type Client struct {
	baseURL string
	minIoU  float64
	client  *http.Client
	cache   *lru.Cache[string, *FaceResponse]
}

// New creates a face service client.
func New(cfg config.RemoteConfig) (*Client, error) {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	minIoU := cfg.MinIoU
	if minIoU <= 0 {
		minIoU = constants.IoUThreshold
	}

	cache, err := lru.New[string, *FaceResponse](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		minIoU:  minIoU,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   cache,
	}, nil
}

// DetectFaces returns the boxes of all faces, highest detection score first.
// The service does its own scaling, so upsample is not used.
func (c *Client) DetectFaces(ctx context.Context, gray *image.Gray, _ int) ([]image.Rectangle, error) {
	resp, err := c.detect(ctx, gray)
	if err != nil {
		return nil, err
	}

	faces := slices.Clone(resp.Faces)
	slices.SortStableFunc(faces, func(a, b FaceDetection) int {
		return cmp.Compare(b.DetScore, a.DetScore)
	})

	boxes := make([]image.Rectangle, 0, len(faces))
	for _, f := range faces {
		if r := facematch.BBoxToRect(f.BBox); !r.Empty() {
			boxes = append(boxes, r)
		}
	}
	return boxes, nil
}

// DetectLandmarks returns the 5-point layout of the face that best overlaps box.
func (c *Client) DetectLandmarks(ctx context.Context, gray *image.Gray, box image.Rectangle) (landmark.Shape, error) {
	resp, err := c.detect(ctx, gray)
	if err != nil {
		return nil, err
	}

	bboxes := make([][]float64, len(resp.Faces))
	for i, f := range resp.Faces {
		bboxes[i] = f.BBox
	}
	idx, _ := facematch.BestMatch(bboxes, facematch.RectToBBox(box), c.minIoU)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoMatchingFace, box)
	}

	return toShape(resp.Faces[idx].Landmarks)
}

// toShape maps service keypoints to the 5-point layout. The subject's left
// eye is the one on the image right.
func toShape(kps [][]float64) (landmark.Points, error) {
	if len(kps) <= kpsNose {
		return nil, fmt.Errorf("expected at least %d keypoints, got %d", kpsNose+1, len(kps))
	}

	pts := make([]image.Point, kpsNose+1)
	for i := range pts {
		if len(kps[i]) < 2 {
			return nil, fmt.Errorf("malformed keypoint %d: %v", i, kps[i])
		}
		pts[i] = image.Pt(int(kps[i][0]), int(kps[i][1]))
	}

	left, right := pts[kpsImageRightEye], pts[kpsImageLeftEye]
	mid := image.Pt((left.X+right.X)/2, (left.Y+right.Y)/2)
	return landmark.Points{left, mid, right, mid, pts[kpsNose]}, nil
}

// detect returns the service response for gray, from cache when possible.
func (c *Client) detect(ctx context.Context, gray *image.Gray) (*FaceResponse, error) {
	key := digest(gray)
	if resp, ok := c.cache.Get(key); ok {
		return resp, nil
	}

	var buf bytes.Buffer
	if err := imageutil.Encode(&buf, gray, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode detection buffer: %w", err)
	}

	body, err := c.postMultipartImage(ctx, detectEndpoint, buf.Bytes())
	if err != nil {
		return nil, err
	}

	var resp FaceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.cache.Add(key, &resp)
	return &resp, nil
}

// postMultipartImage posts imageData as the "file" form field to endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.png"`)
	h.Set("Content-Type", mimetype.Detect(imageData).String())
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// digest identifies a pixel buffer by its size and content.
func digest(gray *image.Gray) string {
	h := sha256.New()
	b := gray.Bounds()
	var dims [16]byte
	binary.LittleEndian.PutUint64(dims[:8], uint64(b.Dx()))
	binary.LittleEndian.PutUint64(dims[8:], uint64(b.Dy()))
	h.Write(dims[:])
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := gray.PixOffset(b.Min.X, y)
		h.Write(gray.Pix[start : start+b.Dx()])
	}
	return hex.EncodeToString(h.Sum(nil))
}
