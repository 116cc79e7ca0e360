package support

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/MeKo-Tech/boxaug/internal/imageio"
	"github.com/MeKo-Tech/boxaug/internal/testutil"
	"github.com/cucumber/godog"
)

var (
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.NRGBA{R: 255, A: 255}
)

// parseMarkers parses "x,y,w,h; x,y,w,h" pixel rectangles.
func parseMarkers(spec string) ([]image.Rectangle, error) {
	var rects []image.Rectangle
	for _, part := range strings.Split(spec, ";") {
		fields := strings.Split(strings.TrimSpace(part), ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("marker %q must be x,y,w,h", part)
		}
		v := make([]int, 4)
		for i, f := range fields {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, fmt.Errorf("marker %q: %w", part, err)
			}
			v[i] = n
		}
		rects = append(rects, image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]))
	}
	return rects, nil
}

// writeImage saves a white image with red markers.
func (testCtx *TestContext) writeImage(name string, w, h int, markers []image.Rectangle) (string, error) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{white}, image.Point{}, draw.Src)
	for _, m := range markers {
		draw.Draw(img, m.Intersect(img.Bounds()), &image.Uniform{red}, image.Point{}, draw.Src)
	}
	path := testCtx.Path(name)
	if err := imageio.Save(img, path, "", 95); err != nil {
		return "", err
	}
	return path, nil
}

// anAnnotatedImage writes an image plus a sidecar holding one box per marker.
func (testCtx *TestContext) anAnnotatedImage(name string, w, h int, markerSpec string) error {
	markers, err := parseMarkers(markerSpec)
	if err != nil {
		return err
	}
	path, err := testCtx.writeImage(name, w, h, markers)
	if err != nil {
		return err
	}

	size := image.Pt(w, h)
	boxes := make([]geometry.Box, len(markers))
	for i, m := range markers {
		boxes[i] = geometry.ToRelative(geometry.Rect{
			X: float64(m.Min.X), Y: float64(m.Min.Y), W: float64(m.Dx()), H: float64(m.Dy()),
		}, size)
	}
	return imageio.SaveAnnotations(imageio.SidecarPath(path), imageio.Annotations{Boxes: boxes})
}

// anImageWithoutBoxes writes a plain image with no sidecar.
func (testCtx *TestContext) anImageWithoutBoxes(name string, w, h int) error {
	_, err := testCtx.writeImage(name, w, h, nil)
	return err
}

// aFileWithContent writes a doc string to a file.
func (testCtx *TestContext) aFileWithContent(name string, content *godog.DocString) error {
	path := testCtx.Path(name)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content.Content), 0o600)
}

// RegisterFixtureSteps registers steps that create input files.
func (testCtx *TestContext) RegisterFixtureSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an annotated image "([^"]*)" of (\d+)x(\d+) with markers "([^"]*)"$`, testCtx.anAnnotatedImage)
	sc.Step(`^an image "([^"]*)" of (\d+)x(\d+) without boxes$`, testCtx.anImageWithoutBoxes)
	sc.Step(`^a file "([^"]*)" containing:$`, testCtx.aFileWithContent)
}
