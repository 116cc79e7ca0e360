package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	// Marker colors used by the generated images.
	Red    = color.NRGBA{R: 255, A: 255}
	Green  = color.NRGBA{G: 255, A: 255}
	Blue   = color.NRGBA{B: 255, A: 255}
	White  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	Black  = color.NRGBA{A: 255}
	Silver = color.NRGBA{R: 192, G: 192, B: 192, A: 255}
)

// CreateTestImage creates a width x height image filled with backgroundColor.
func CreateTestImage(width, height int, backgroundColor color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// FillRect paints rect (clipped to the image) with c.
func FillRect(img draw.Image, rect image.Rectangle, c color.Color) {
	draw.Draw(img, rect.Intersect(img.Bounds()), &image.Uniform{c}, image.Point{}, draw.Src)
}

// CreateMarkedImage creates a white image with a solid marker rectangle. It is
// the usual fixture for checking that a box still covers its marker after a
// transform.
func CreateMarkedImage(width, height int, marker image.Rectangle, c color.Color) *image.NRGBA {
	img := CreateTestImage(width, height, White)
	FillRect(img, marker, c)
	return img
}

// CreateGradientImage creates an image where every pixel differs from its
// neighbours, so mirrored or shifted content is detectable.
func CreateGradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 255) / max(1, width-1)),
				G: uint8((y * 255) / max(1, height-1)),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

// CreateLabelledImage draws text centered on a white background.
func CreateLabelledImage(width, height int, text string) *image.NRGBA {
	img := CreateTestImage(width, height, White)
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{Black}, Face: face}
	textWidth := font.MeasureString(face, text).Ceil()
	textHeight := face.Metrics().Height.Ceil()
	drawer.Dot = fixed.P((width-textWidth)/2, (height+textHeight)/2)
	drawer.DrawString(text)
	return img
}

// NRGBAAt returns the pixel at (x, y) relative to the image origin.
func NRGBAAt(img image.Image, x, y int) color.NRGBA {
	b := img.Bounds()
	return color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
}

// CountColor counts pixels within tolerance (per channel) of c.
func CountColor(img image.Image, c color.NRGBA, tolerance int) int {
	b := img.Bounds()
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if near(p.R, c.R, tolerance) && near(p.G, c.G, tolerance) && near(p.B, c.B, tolerance) {
				n++
			}
		}
	}
	return n
}

// ColorBounds returns the bounding rectangle (relative to the image origin) of
// all pixels within tolerance of c, and false if there are none.
func ColorBounds(img image.Image, c color.NRGBA, tolerance int) (image.Rectangle, bool) {
	b := img.Bounds()
	found := false
	var r image.Rectangle
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			p := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if !near(p.R, c.R, tolerance) || !near(p.G, c.G, tolerance) || !near(p.B, c.B, tolerance) {
				continue
			}
			px := image.Rect(x-b.Min.X, y-b.Min.Y, x-b.Min.X+1, y-b.Min.Y+1)
			if !found {
				r = px
				found = true
			} else {
				r = r.Union(px)
			}
		}
	}
	return r, found
}

// CompareImages reports whether two images have equal bounds and an average
// per-pixel color distance no larger than tolerance (0..1).
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds1 := img1.Bounds()
	bounds2 := img2.Bounds()
	if bounds1.Size() != bounds2.Size() {
		return false
	}
	if bounds1.Empty() {
		return true
	}

	var totalDiff float64
	var pixelCount float64
	for y := range bounds1.Dy() {
		for x := range bounds1.Dx() {
			r1, g1, b1, a1 := img1.At(bounds1.Min.X+x, bounds1.Min.Y+y).RGBA()
			r2, g2, b2, a2 := img2.At(bounds2.Min.X+x, bounds2.Min.Y+y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)

			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
			pixelCount++
		}
	}

	avgDiff := totalDiff / pixelCount
	maxDiff := math.Sqrt(4 * 65535 * 65535)
	return (avgDiff / maxDiff) <= tolerance
}

// SaveImage writes img as PNG, creating parent directories as needed.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// LoadImage decodes the image at path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")
	return img
}

func near(a, b uint8, tol int) bool {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d <= tol
}
