package imageio

import (
	"bytes"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/MeKo-Tech/boxaug/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.png", true},
		{"a.JPG", true},
		{"a.jpeg", true},
		{"a.bmp", true},
		{"a.tiff", true},
		{"a.webp", true},
		{"a.gif", false},
		{"a.pdf", false},
		{"noext", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSupportedImage(tt.path))
		})
	}
}

func TestFormatFromPathAndExtension(t *testing.T) {
	f, ok := FormatFromPath("x/y.JPEG")
	require.True(t, ok)
	assert.Equal(t, "jpeg", f)
	assert.Equal(t, ".jpg", Extension(f))
	assert.Equal(t, ".webp", Extension("webp"))
	assert.Equal(t, ".png", Extension(""))

	_, ok = FormatFromPath("x/y.gif")
	assert.False(t, ok)
}

func TestSaveLoad_AllFormats(t *testing.T) {
	dir := t.TempDir()
	img := testutil.CreateMarkedImage(32, 24, image.Rect(4, 4, 12, 12), testutil.Red)

	for _, name := range []string{"out.png", "out.jpg", "out.bmp", "out.tiff", "out.webp"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "nested", name)
			require.NoError(t, Save(img, path, "", 95))

			loaded, meta, err := LoadImage(path)
			require.NoError(t, err)
			assert.Equal(t, image.Pt(32, 24), loaded.Bounds().Size())
			assert.Equal(t, 32, meta.Width)
			assert.Positive(t, meta.SizeBytes)
			assert.True(t, testutil.CompareImages(img, loaded, 0.05))
		})
	}
}

func TestEncodeDecode_Buffer(t *testing.T) {
	img := testutil.CreateGradientImage(16, 16)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, "png", 0))

	decoded, format, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.True(t, testutil.CompareImages(img, decoded, 0))
}

func TestEncode_UnsupportedFormat(t *testing.T) {
	err := Encode(&bytes.Buffer{}, testutil.CreateGradientImage(2, 2), "gif", 0)
	var ierr *Error
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "encode", ierr.Op)
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("")
	assert.Error(t, err)

	_, _, err = LoadImage("file.gif")
	assert.Error(t, err)

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o600))
	_, _, err = LoadImage(garbage)
	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "decode", ierr.Op)
}

func TestAnnotations_RoundTrip(t *testing.T) {
	roi := geometry.NewBox(0, 0, 1, 1)
	a := Annotations{
		Boxes: []geometry.Box{geometry.NewBox(0.05, 0.2, 0.25, 0.35), geometry.NewBox(0.45, 0.4, 0.15, 0.3)},
		ROI:   &roi,
	}
	path := filepath.Join(t.TempDir(), "img.png"+SidecarSuffix)
	require.NoError(t, SaveAnnotations(path, a))

	loaded, err := LoadAnnotations(path)
	require.NoError(t, err)
	assert.Equal(t, a, loaded)
}

func TestLoadSidecar(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "img.png")

	_, ok, err := LoadSidecar(imgPath)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(SidecarPath(imgPath), []byte(`{"boxes": [[0.1, 0.2, 0.3, 0.4]]}`), 0o600))
	a, ok, err := LoadSidecar(imgPath)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []geometry.Box{geometry.NewBox(0.1, 0.2, 0.3, 0.4)}, a.Boxes)
	assert.Nil(t, a.ROI)
}

func TestParseAnnotations_Invalid(t *testing.T) {
	_, err := ParseAnnotations([]byte(`{"boxes": [[0.1, 0.2]]}`))
	assert.Error(t, err)

	_, err = ParseAnnotations([]byte(`{"boxes": [], "roi": [1]}`))
	assert.Error(t, err)

	_, err = ParseAnnotations([]byte(`nope`))
	assert.Error(t, err)
}

func TestDefaultROI(t *testing.T) {
	a := Annotations{Boxes: []geometry.Box{
		geometry.NewBox(0.1, 0.1, 0.1, 0.1),
		geometry.NewBox(0.5, 0.6, 0.2, 0.2),
	}}
	roi := a.DefaultROI()
	require.NotNil(t, roi)
	assert.InDelta(t, 0.1, roi.X, 1e-9)
	assert.InDelta(t, 0.7, roi.MaxX(), 1e-9)
	assert.InDelta(t, 0.8, roi.MaxY(), 1e-9)

	explicit := geometry.NewBox(0, 0, 1, 1)
	a.ROI = &explicit
	assert.Equal(t, &explicit, a.DefaultROI())

	assert.Nil(t, Annotations{}.DefaultROI())
}
