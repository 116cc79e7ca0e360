package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/boxaug/internal/imageio"
	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/MeKo-Tech/boxaug/internal/server"
	"github.com/cucumber/godog"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// Close stops the test server.
func (w *HTTPTestServerWrapper) Close() {
	w.Server.Close()
}

// startServer starts an in-process server with p.
func (testCtx *TestContext) startServer(p policy.Policy, rateLimit server.RateLimitConfig) error {
	srv, err := server.NewServer(server.Config{
		CORSOrigin:  "*",
		MaxUploadMB: 5,
		Policy:      p,
		RateLimit:   rateLimit,
	})
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{Server: httptest.NewServer(mux), TestServer: srv}
	return nil
}

// anAugmentationServerWithPolicy starts a server with a JSON policy.
func (testCtx *TestContext) anAugmentationServerWithPolicy(doc *godog.DocString) error {
	p, err := policy.FromJSON([]byte(doc.Content))
	if err != nil {
		return err
	}
	return testCtx.startServer(p, server.RateLimitConfig{})
}

// aRateLimitedServer starts a default-policy server allowing n requests per
// minute.
func (testCtx *TestContext) aRateLimitedServer(n int) error {
	return testCtx.startServer(policy.Default(), server.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: n,
	})
}

func (testCtx *TestContext) do(req *http.Request) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = body
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

// iGet issues a GET request.
func (testCtx *TestContext) iGet(path string) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("no server running")
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, testCtx.HTTPTestServer.Server.URL+path, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// iUpload posts an image, its sidecar boxes when present, and extra form
// fields given as a URL query string.
func (testCtx *TestContext) iUpload(name, query string) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("no server running")
	}
	fields, err := url.ParseQuery(query)
	if err != nil {
		return err
	}

	path := testCtx.Path(name)
	data, err := os.ReadFile(path) //nolint:gosec // G304: scenario file
	if err != nil {
		return err
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if sidecar, err := os.ReadFile(imageio.SidecarPath(path)); err == nil {
		if err := mw.WriteField("boxes", string(sidecar)); err != nil {
			return err
		}
	}
	for k, vs := range fields {
		for _, v := range vs {
			if err := mw.WriteField(k, v); err != nil {
				return err
			}
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		testCtx.HTTPTestServer.Server.URL+"/augment", body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testCtx.do(req)
}

// theResponseStatusShouldBe verifies the HTTP status.
func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("status %d, want %d\nbody: %s", testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPResponse)
	}
	return nil
}

// theResponseHeaderShouldBeSet verifies a header is present.
func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)] == "" {
		return fmt.Errorf("header %s missing", name)
	}
	return nil
}

func (testCtx *TestContext) augmentResult() (*server.AugmentResult, error) {
	var resp server.AugmentResponse
	if err := json.Unmarshal(testCtx.LastHTTPResponse, &resp); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w\nbody: %s", err, testCtx.LastHTTPResponse)
	}
	if !resp.Success || resp.Result == nil {
		return nil, fmt.Errorf("augmentation failed: %s", resp.Error)
	}
	return resp.Result, nil
}

// theResponseBoxShouldBe checks one returned box to 1e-6.
func (testCtx *TestContext) theResponseBoxShouldBe(idx int, x, y, w, h float64) error {
	res, err := testCtx.augmentResult()
	if err != nil {
		return err
	}
	if idx >= len(res.Boxes) {
		return fmt.Errorf("response has %d boxes", len(res.Boxes))
	}
	want := []float64{x, y, w, h}
	for i, v := range res.Boxes[idx] {
		if math.Abs(v-want[i]) > 1e-6 {
			return fmt.Errorf("box %d is %v, want %v", idx, res.Boxes[idx], want)
		}
	}
	return nil
}

// theResponseSeedShouldBe checks the echoed seed.
func (testCtx *TestContext) theResponseSeedShouldBe(seed uint64) error {
	res, err := testCtx.augmentResult()
	if err != nil {
		return err
	}
	if res.Seed != seed {
		return fmt.Errorf("seed %d, want %d", res.Seed, seed)
	}
	return nil
}

// theResponseSizeShouldBe checks the output dimensions.
func (testCtx *TestContext) theResponseSizeShouldBe(w, h int) error {
	res, err := testCtx.augmentResult()
	if err != nil {
		return err
	}
	if res.Width != w || res.Height != h {
		return fmt.Errorf("size %dx%d, want %dx%d", res.Width, res.Height, w, h)
	}
	return nil
}

// RegisterServerSteps registers HTTP server steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an augmentation server with policy:$`, testCtx.anAugmentationServerWithPolicy)
	sc.Step(`^an augmentation server allowing (\d+) requests? per minute$`, testCtx.aRateLimitedServer)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGet)
	sc.Step(`^I upload "([^"]*)" with "([^"]*)"$`, testCtx.iUpload)
	sc.Step(`^I upload "([^"]*)"$`, func(name string) error { return testCtx.iUpload(name, "") })
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
	sc.Step(`^response box (\d+) should be \[([-0-9.]+), ([-0-9.]+), ([-0-9.]+), ([-0-9.]+)\]$`, testCtx.theResponseBoxShouldBe)
	sc.Step(`^the response seed should be (\d+)$`, testCtx.theResponseSeedShouldBe)
	sc.Step(`^the response image should be (\d+)x(\d+)$`, testCtx.theResponseSizeShouldBe)
}
