package testutil

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/stretchr/testify/require"
)

// Fixture is an annotated test image written to disk: a white canvas with one
// red marker per box.
type Fixture struct {
	ImagePath   string
	SidecarPath string
	Size        image.Point
	Boxes       []geometry.Box
}

// fixtureSidecar mirrors the on-disk annotation format without importing the
// package that owns it.
type fixtureSidecar struct {
	Boxes [][]float64 `json:"boxes"`
	ROI   []float64   `json:"roi,omitempty"`
}

// WriteFixture renders markers onto a width x height image, saves it as
// dir/name.png and writes the matching name.png.boxes.json sidecar. A nil roi
// leaves the ROI out of the sidecar.
func WriteFixture(t *testing.T, dir, name string, width, height int, markers []image.Rectangle, roi *geometry.Box) Fixture {
	t.Helper()

	img := CreateTestImage(width, height, White)
	size := image.Pt(width, height)
	boxes := make([]geometry.Box, 0, len(markers))
	for _, m := range markers {
		FillRect(img, m, Red)
		boxes = append(boxes, geometry.ToRelative(geometry.Rect{
			X: float64(m.Min.X), Y: float64(m.Min.Y), W: float64(m.Dx()), H: float64(m.Dy()),
		}, size))
	}

	imagePath := filepath.Join(dir, name+".png")
	SaveImage(t, img, imagePath)

	sc := fixtureSidecar{Boxes: make([][]float64, len(boxes))}
	for i, b := range boxes {
		sc.Boxes[i] = b.Slice()
	}
	if roi != nil {
		sc.ROI = roi.Slice()
	}
	data, err := json.Marshal(sc)
	require.NoError(t, err)
	sidecarPath := imagePath + ".boxes.json"
	require.NoError(t, os.WriteFile(sidecarPath, data, 0o600))

	return Fixture{ImagePath: imagePath, SidecarPath: sidecarPath, Size: size, Boxes: boxes}
}

// ReadSidecarBoxes reads the boxes of an annotation sidecar.
func ReadSidecarBoxes(t *testing.T, path string) []geometry.Box {
	t.Helper()

	data, err := os.ReadFile(path) //nolint:gosec // G304: test sidecar with controlled path
	require.NoError(t, err, "Failed to read sidecar %s", path)

	var sc fixtureSidecar
	require.NoError(t, json.Unmarshal(data, &sc))

	boxes := make([]geometry.Box, 0, len(sc.Boxes))
	for _, v := range sc.Boxes {
		b, err := geometry.BoxFromSlice(v)
		require.NoError(t, err)
		boxes = append(boxes, b)
	}
	return boxes
}
