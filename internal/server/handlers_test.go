package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"math"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/boxaug/internal/augment"
	"github.com/MeKo-Tech/boxaug/internal/imageio"
	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/MeKo-Tech/boxaug/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAugmentResponse(t *testing.T, w *httptest.ResponseRecorder) AugmentResponse {
	t.Helper()
	var resp AugmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestServer_HealthHandler(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request success", http.MethodGet, http.StatusOK},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.healthHandler(w, httptest.NewRequest(tt.method, "/health", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "healthy", response.Status)
				assert.NotEmpty(t, response.Time)
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestServer_PolicyHandler(t *testing.T) {
	server := newTestServer(t)

	w := httptest.NewRecorder()
	server.policyHandler(w, httptest.NewRequest(http.MethodGet, "/policy", nil))

	require.Equal(t, http.StatusOK, w.Code)
	p, err := policy.FromJSON(w.Body.Bytes())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.FlipProb, 1e-12)

	w = httptest.NewRecorder()
	server.policyHandler(w, httptest.NewRequest(http.MethodPut, "/policy", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_AugmentJSON(t *testing.T) {
	server := newTestServer(t)
	img := testutil.CreateMarkedImage(100, 50, image.Rect(10, 5, 30, 25), testutil.Red)

	w := httptest.NewRecorder()
	server.augmentHandler(w, multipartRequest(t, img, map[string]string{
		"boxes": "[[0.1, 0.1, 0.2, 0.4]]",
		"seed":  "42",
	}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeAugmentResponse(t, w)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Result)

	res := resp.Result
	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 50, res.Height)
	assert.Equal(t, uint64(42), res.Seed)
	assert.Equal(t, []string{augment.StepFlip}, res.Steps)
	require.Len(t, res.Boxes, 1)
	assert.InDelta(t, 0.7, res.Boxes[0][0], 1e-9)

	data, err := base64.StdEncoding.DecodeString(res.Image)
	require.NoError(t, err)
	out, _, err := imageio.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, testutil.Red, testutil.NRGBAAt(out, 80, 10))
}

func TestServer_AugmentSeedIsReproducible(t *testing.T) {
	server, err := NewServer(Config{Policy: policy.Default()})
	require.NoError(t, err)
	img := testutil.CreateGradientImage(60, 40)
	fields := map[string]string{"boxes": `{"boxes": [[0.2, 0.2, 0.3, 0.3]], "roi": [0.1, 0.1, 0.5, 0.5]}`, "seed": "9"}

	var results []*AugmentResult
	for range 2 {
		w := httptest.NewRecorder()
		server.augmentHandler(w, multipartRequest(t, img, fields))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		results = append(results, decodeAugmentResponse(t, w).Result)
	}
	assert.Equal(t, results[0], results[1])
}

func TestServer_AugmentImageFormat(t *testing.T) {
	server := newTestServer(t)
	img := testutil.CreateTestImage(20, 10, testutil.White)

	w := httptest.NewRecorder()
	server.augmentHandler(w, multipartRequest(t, img, map[string]string{
		"boxes":  "[[0, 0, 0.5, 0.5]]",
		"format": "image",
		"output": "jpeg",
		"seed":   "3",
	}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "3", w.Header().Get("X-Boxaug-Seed"))

	var boxes [][]float64
	require.NoError(t, json.Unmarshal([]byte(w.Header().Get("X-Boxaug-Boxes")), &boxes))
	require.Len(t, boxes, 1)
	assert.InDelta(t, 0.5, boxes[0][0], 1e-9)

	out, format, err := imageio.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Pt(20, 10), out.Bounds().Size())
}

func TestServer_AugmentOverlayFormat(t *testing.T) {
	server := newTestServer(t)
	img := testutil.CreateTestImage(40, 40, testutil.White)

	w := httptest.NewRecorder()
	server.augmentHandler(w, multipartRequest(t, img, map[string]string{
		"boxes":  "[[0.25, 0.25, 0.5, 0.5]]",
		"format": "overlay",
	}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	out, _, err := imageio.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Positive(t, testutil.CountColor(out, testutil.Red, 0))
}

func TestServer_AugmentPolicyOverride(t *testing.T) {
	server := newTestServer(t)
	img := testutil.CreateTestImage(30, 30, testutil.White)

	w := httptest.NewRecorder()
	server.augmentHandler(w, multipartRequest(t, img, map[string]string{
		"policy": `{"rotation_prob": 1, "rotation_angle_range": [90, 90]}`,
	}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{augment.StepRotate}, decodeAugmentResponse(t, w).Result.Steps)
}

func TestServer_AugmentBadRequests(t *testing.T) {
	server := newTestServer(t)
	img := testutil.CreateTestImage(10, 10, testutil.White)

	tests := []struct {
		name    string
		img     image.Image
		fields  map[string]string
		message string
	}{
		{"missing image", nil, nil, "no image file provided"},
		{"bad boxes", img, map[string]string{"boxes": "[[1,2]]"}, "invalid boxes"},
		{"bad roi", img, map[string]string{"roi": "nope"}, "invalid roi"},
		{"bad seed", img, map[string]string{"seed": "-1"}, "invalid seed"},
		{"bad format", img, map[string]string{"format": "xml"}, "unsupported response format"},
		{"bad output", img, map[string]string{"output": "gif"}, "unsupported output format"},
		{"bad quality", img, map[string]string{"quality": "0"}, "invalid quality"},
		{"invalid policy", img, map[string]string{"policy": `{"flip_prob": 2}`}, "flip_prob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.augmentHandler(w, multipartRequest(t, tt.img, tt.fields))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeAugmentResponse(t, w)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, tt.message)
		})
	}
}

func TestServer_AugmentNotAnImage(t *testing.T) {
	server := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "upload.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("definitely not an image"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/augment", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	server.augmentHandler(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeAugmentResponse(t, w).Error, "invalid image format")
}

func TestServer_AugmentMethodNotAllowed(t *testing.T) {
	server := newTestServer(t)
	w := httptest.NewRecorder()
	server.augmentHandler(w, httptest.NewRequest(http.MethodGet, "/augment", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_AugmentTooLarge(t *testing.T) {
	server := newTestServer(t)

	// incompressible noise keeps the PNG above the 1 MB limit
	noise := image.NewNRGBA(image.Rect(0, 0, 800, 800))
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range noise.Pix {
		noise.Pix[i] = uint8(rng.IntN(256))
	}

	w := httptest.NewRecorder()
	server.augmentHandler(w, multipartRequest(t, noise, nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestNewServer_RejectsInvalidPolicy(t *testing.T) {
	_, err := NewServer(Config{Policy: policy.Policy{FlipProb: -1}})
	require.Error(t, err)
}

func TestServer_Routes(t *testing.T) {
	server := newTestServer(t)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, multipartRequest(t, testutil.CreateTestImage(8, 8, testutil.White), nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, "boxaug_augment_requests_total"))
	assert.True(t, strings.Contains(body, "boxaug_http_requests_total"))
	assert.True(t, strings.Contains(body, `boxaug_augment_step_duration_seconds_count{step="flip"}`))
}

func TestWriteJSON_UnencodableBoxesAreAServerError(t *testing.T) {
	w := httptest.NewRecorder()

	writeJSON(w, http.StatusOK, AugmentResponse{
		Success: true,
		Result:  &AugmentResult{Boxes: [][]float64{{math.NaN(), 0, math.Inf(1), 0}}},
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	resp := decodeAugmentResponse(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "response encoding failed", resp.Error)
}

func TestWriteJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()

	writeJSON(w, http.StatusCreated, HealthResponse{Status: "ok"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"status":"ok","time":""}`, strings.TrimSpace(w.Body.String()))
}
