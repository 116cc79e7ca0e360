package server

import (
	"bytes"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/boxaug/internal/imageio"
	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/stretchr/testify/require"
)

// newTestServer creates a server whose default policy always flips.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(Config{CORSOrigin: "*", MaxUploadMB: 1, Policy: policy.Policy{FlipProb: 1}})
	require.NoError(t, err)
	return s
}

// multipartRequest builds a POST /augment request with img encoded as PNG
// and the given extra form fields.
func multipartRequest(t *testing.T, img image.Image, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if img != nil {
		part, err := mw.CreateFormFile("image", "upload.png")
		require.NoError(t, err)
		require.NoError(t, imageio.Encode(part, img, "png", 0))
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/augment", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
