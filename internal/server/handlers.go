package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/boxaug/internal/augment"
	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/MeKo-Tech/boxaug/internal/imageio"
	"github.com/MeKo-Tech/boxaug/internal/mempool"
	"github.com/MeKo-Tech/boxaug/internal/overlay"
	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/MeKo-Tech/boxaug/internal/transform"
	"github.com/MeKo-Tech/boxaug/internal/version"
)

// Response formats of POST /augment.
const (
	formatJSON    = "json"
	formatImage   = "image"
	formatOverlay = "overlay"
)

const defaultQuality = 95

// augmentRequest is a parsed POST /augment form.
type augmentRequest struct {
	image   image.Image
	boxes   []geometry.Box
	roi     *geometry.Box
	policy  policy.Policy
	seed    uint64
	format  string // response format
	output  string // image encoding
	quality int
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ver, _, _ := version.Info()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ver,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// policyHandler returns the policy used when a request carries none.
func (s *Server) policyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.policy)
}

// augmentHandler runs one augmentation of an uploaded image.
//
// Form fields: image (file, required), boxes (JSON [[x,y,w,h],...] or a
// sidecar object), roi (JSON [x,y,w,h]), policy (JSON), seed, output (image
// encoding), quality and format (json, image or overlay).
func (s *Server) augmentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, status, err := s.parseAugmentRequest(w, r)
	if err != nil {
		augmentRequestsTotal.WithLabelValues("invalid").Inc()
		s.writeErrorResponse(w, err.Error(), status)
		return
	}

	roi := req.roi
	if roi == nil {
		roi = imageio.Annotations{Boxes: req.boxes}.DefaultROI()
	}

	augmentor := &policy.Augmentor{
		Policy:   req.policy,
		Pipeline: &augment.Pipeline{Adjuster: augment.PixelAdjuster{}, OnStep: observeStep},
	}
	rng := rand.New(rand.NewPCG(req.seed, 0))
	start := time.Now()
	out, drawn, err := augmentor.Augment(rng, transform.NewSample(req.image, req.boxes), roi)
	duration := time.Since(start)
	if err != nil {
		var ve *augment.ValidationError
		if errors.As(err, &ve) {
			augmentRequestsTotal.WithLabelValues("invalid").Inc()
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		augmentRequestsTotal.WithLabelValues("error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("augmentation failed: %v", err), http.StatusInternalServerError)
		return
	}

	steps := augment.StepNames(drawn)
	augmentRequestsTotal.WithLabelValues("success").Inc()
	augmentDuration.Observe(duration.Seconds())
	augmentBoxes.Observe(float64(len(out.Boxes)))
	slog.Debug("Augmented upload", "seed", req.seed, "steps", steps, "boxes", len(out.Boxes),
		"duration", duration.Round(time.Microsecond))

	s.writeAugmentResponse(w, req, out, steps)
}

func (s *Server) parseAugmentRequest(w http.ResponseWriter, r *http.Request) (*augmentRequest, int, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
			return nil, http.StatusRequestEntityTooLarge, errors.New("file too large")
		}
		return nil, http.StatusBadRequest, errors.New("failed to parse form data")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("no image file provided")
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("failed to read image data")
	}
	img, _, err := imageio.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("invalid image format")
	}

	req := &augmentRequest{
		image:   img,
		policy:  s.policy,
		format:  formatJSON,
		output:  "png",
		quality: defaultQuality,
	}

	if v := r.FormValue("boxes"); v != "" {
		boxes, roi, err := parseBoxes(v)
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid boxes: %w", err)
		}
		req.boxes, req.roi = boxes, roi
	}
	if v := r.FormValue("roi"); v != "" {
		roi, err := parseBox(v)
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid roi: %w", err)
		}
		req.roi = &roi
	}
	if v := r.FormValue("policy"); v != "" {
		p, err := policy.FromJSON([]byte(v))
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		if err := p.Validate(); err != nil {
			return nil, http.StatusBadRequest, err
		}
		req.policy = p
	}

	req.seed = rand.Uint64() //nolint:gosec // G404: augmentation seeds are not secrets
	if v := r.FormValue("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid seed: %q", v)
		}
		req.seed = seed
	}

	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	switch format {
	case "":
	case formatJSON, formatImage, formatOverlay:
		req.format = format
	default:
		return nil, http.StatusBadRequest, fmt.Errorf("unsupported response format: %q", format)
	}

	if v := strings.ToLower(r.FormValue("output")); v != "" {
		if !slices.Contains(imageio.OutputFormats(), v) {
			return nil, http.StatusBadRequest, fmt.Errorf("unsupported output format: %q", v)
		}
		req.output = v
	}
	if v := r.FormValue("quality"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil || q < 1 || q > 100 {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid quality: %q", v)
		}
		req.quality = q
	}

	return req, http.StatusOK, nil
}

// parseBoxes accepts either a JSON list of [x,y,w,h] boxes or a sidecar
// object {"boxes": [...], "roi": [...]}.
func parseBoxes(v string) ([]geometry.Box, *geometry.Box, error) {
	if strings.HasPrefix(strings.TrimSpace(v), "{") {
		a, err := imageio.ParseAnnotations([]byte(v))
		if err != nil {
			return nil, nil, err
		}
		return a.Boxes, a.ROI, nil
	}

	var raw [][]float64
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		return nil, nil, err
	}
	boxes := make([]geometry.Box, 0, len(raw))
	for i, b := range raw {
		box, err := geometry.BoxFromSlice(b)
		if err != nil {
			return nil, nil, fmt.Errorf("box %d: %w", i, err)
		}
		boxes = append(boxes, box)
	}
	return boxes, nil, nil
}

func parseBox(v string) (geometry.Box, error) {
	var raw []float64
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		return geometry.Box{}, err
	}
	return geometry.BoxFromSlice(raw)
}

func (s *Server) writeAugmentResponse(w http.ResponseWriter, req *augmentRequest, out transform.Sample, steps []string) {
	boxes := make([][]float64, len(out.Boxes))
	for i, b := range out.Boxes {
		boxes[i] = b.Slice()
	}
	size := out.Size()
	sizeHint := size.X * size.Y

	switch req.format {
	case formatOverlay:
		buf := mempool.GetBuffer(sizeHint)
		defer mempool.PutBuffer(buf)
		if err := imageio.Encode(buf, overlay.Render(out.Image, out.Boxes, s.overlay), "png", 0); err != nil {
			s.writeErrorResponse(w, "overlay encoding failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Boxaug-Seed", strconv.FormatUint(req.seed, 10))
		_, _ = w.Write(buf.Bytes())
		return

	case formatImage:
		buf := mempool.GetBuffer(sizeHint)
		defer mempool.PutBuffer(buf)
		if err := imageio.Encode(buf, out.Image, req.output, req.quality); err != nil {
			s.writeErrorResponse(w, "image encoding failed", http.StatusInternalServerError)
			return
		}
		encoded, err := json.Marshal(boxes)
		if err != nil {
			s.writeErrorResponse(w, "box encoding failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType(req.output))
		w.Header().Set("X-Boxaug-Boxes", string(encoded))
		w.Header().Set("X-Boxaug-Seed", strconv.FormatUint(req.seed, 10))
		_, _ = w.Write(buf.Bytes())
		return
	}

	buf := mempool.GetBuffer(sizeHint)
	defer mempool.PutBuffer(buf)
	if err := imageio.Encode(buf, out.Image, req.output, req.quality); err != nil {
		s.writeErrorResponse(w, "image encoding failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, AugmentResponse{
		Success: true,
		Result: &AugmentResult{
			Width:  size.X,
			Height: size.Y,
			Format: req.output,
			Seed:   req.seed,
			Boxes:  boxes,
			Steps:  steps,
			Image:  base64.StdEncoding.EncodeToString(buf.Bytes()),
		},
	})
}

func contentType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	default:
		return "image/" + format
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, AugmentResponse{Success: false, Error: message})
}

// writeJSON encodes v before sending the status line. A value that cannot be
// encoded, such as NaN boxes from a degenerate crop, is answered with a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		status = http.StatusInternalServerError
		data, _ = json.Marshal(AugmentResponse{Success: false, Error: "response encoding failed"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
