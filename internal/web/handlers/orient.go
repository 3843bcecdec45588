package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-orienter/internal/constants"
	"github.com/kozaktomas/face-orienter/internal/imageutil"
	"github.com/kozaktomas/face-orienter/internal/logging"
	"github.com/kozaktomas/face-orienter/internal/orienter"
	"go.uber.org/zap"
)

// Response headers describing the prediction.
const (
	HeaderOrientation = "X-Orientation"
	HeaderConfident   = "X-Orientation-Confident"
	HeaderSource      = "X-Orientation-Source"
	HeaderRequestID   = "X-Request-Id"
)

// imageField is the multipart field carrying the upload.
const imageField = "image"

// Recorder receives request outcomes, e.g. for metrics.
type Recorder interface {
	ObservePrediction(p orienter.Prediction, d time.Duration)
	ObserveFailure(reason string)
}

type nopRecorder struct{}

func (nopRecorder) ObservePrediction(orienter.Prediction, time.Duration) {}
func (nopRecorder) ObserveFailure(string)                                {}

// OrientHandler fixes the orientation of uploaded images.
type OrientHandler struct {
	models        orienter.Models
	fallback      orienter.Fallback
	logger        *zap.Logger
	recorder      Recorder
	maxUploadSize int64
}

// NewOrientHandler creates the handler. fallback and recorder may be nil.
func NewOrientHandler(models orienter.Models, fallback orienter.Fallback, logger *zap.Logger, recorder Recorder, maxUploadSize int64) *OrientHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if maxUploadSize <= 0 {
		maxUploadSize = constants.MaxUploadSize
	}
	return &OrientHandler{
		models:        models,
		fallback:      fallback,
		logger:        logger,
		recorder:      recorder,
		maxUploadSize: maxUploadSize,
	}
}

// Orient handles POST /orient. It returns the corrected image in the format
// of the upload. A request without an image field gets an empty 200 response.
func (h *OrientHandler) Orient(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	requestID := chiMiddleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(HeaderRequestID, requestID)
	log := logging.WithOperation(h.logger, "orient", requestID)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	file, header, err := r.FormFile(imageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.fail(w, log, http.StatusRequestEntityTooLarge, "too_large",
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), err)
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			w.WriteHeader(http.StatusOK)
		default:
			h.fail(w, log, http.StatusBadRequest, "bad_form", "failed to parse multipart form", err)
		}
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, log, http.StatusBadRequest, "read", "failed to read upload", err)
		return
	}

	filename := filepath.Base(header.Filename)
	log = log.With(zap.String("filename", sanitizeForLog(filename)), zap.Int("size", len(data)))

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		h.fail(w, log, http.StatusBadRequest, "invalid_input",
			fmt.Sprintf("upload is not an image (%s)", mt.String()), imageutil.ErrInvalidInput)
		return
	}

	format, err := outputFormat(filename, mt)
	if err != nil {
		h.fail(w, log, http.StatusUnsupportedMediaType, "unsupported_format", err.Error(), err)
		return
	}

	img, err := imageutil.Decode(bytes.NewReader(data))
	if err != nil {
		h.fail(w, log, statusFor(err), "invalid_input", "failed to decode image", err)
		return
	}

	opts := []orienter.Option{orienter.WithLogger(log)}
	if h.fallback != nil {
		opts = append(opts, orienter.WithFallback(h.fallback))
	}
	fo, err := orienter.New(r.Context(), img, h.models, opts...)
	if err != nil {
		h.fail(w, log, statusFor(err), "detect", "failed to detect face", err)
		return
	}

	p := fo.Predict(r.Context())

	var buf bytes.Buffer
	if err := fo.Encode(r.Context(), &buf, format); err != nil {
		h.fail(w, log, http.StatusInternalServerError, "encode", "failed to encode image", err)
		return
	}

	h.recorder.ObservePrediction(p, time.Since(start))
	log.Info("image oriented",
		zap.String("orientation", p.Orientation.String()),
		zap.Bool("confident", p.Confident),
		zap.String("source", p.Source),
		zap.Int("rotations", p.Rotations),
		zap.Duration("duration", time.Since(start)),
	)

	w.Header().Set("Content-Type", imageutil.ContentType(format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	w.Header().Set(HeaderOrientation, p.Orientation.String())
	w.Header().Set(HeaderConfident, strconv.FormatBool(p.Confident))
	w.Header().Set(HeaderSource, p.Source)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// fail logs err and sends a JSON error.
func (h *OrientHandler) fail(w http.ResponseWriter, log *zap.Logger, status int, reason, message string, err error) {
	h.recorder.ObserveFailure(reason)

	requestID := w.Header().Get(HeaderRequestID)
	opErr := logging.NewOperationError("orient", requestID, err)
	if status >= http.StatusInternalServerError {
		log.Error(message, zap.Int("status", status), zap.Error(opErr))
	} else {
		log.Warn(message, zap.Int("status", status), zap.Error(opErr))
	}
	respondError(w, status, message)
}

// outputFormat picks the encoder from the upload's extension, or from its
// sniffed type when the name has none.
func outputFormat(filename string, mt *mimetype.MIME) (imaging.Format, error) {
	name := filename
	if filepath.Ext(name) == "" {
		name += mt.Extension()
	}
	return imageutil.FormatFromFilename(name)
}

// statusFor maps invalid input to 400 and everything else to 500.
func statusFor(err error) int {
	if errors.Is(err, imageutil.ErrInvalidInput) || errors.Is(err, imageutil.ErrEmptyImage) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
