package transform

import (
	"math"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
)

// Rotate turns the image clockwise by deg degrees about its center. The canvas
// is sized to hold the whole rotated image:
//
//	new_w = H*|sin| + W*|cos|
//	new_h = H*|cos| + W*|sin|
//
// and the rotation is re-centered in it. Each box becomes the axis-aligned
// enclosing box of its four rotated corners, so boxes loosen under rotation.
func Rotate(s Sample, deg float64) Sample {
	src := asNRGBA(s.Image)
	size := src.Bounds().Size()
	w, h := float64(size.X), float64(size.Y)
	center := geometry.Point{X: w / 2, Y: h / 2}

	m := geometry.Rotation(center, -deg)
	cos := math.Abs(m[0])
	sin := math.Abs(m[1])
	nw := int(math.Round(h*sin + w*cos))
	nh := int(math.Round(h*cos + w*sin))
	m = m.Translate(float64(nw)/2-center.X, float64(nh)/2-center.Y)

	out := warpAffine(src, m, nw, nh)
	newSize := out.Bounds().Size()

	boxes := mapBoxes(s.Boxes, func(b geometry.Box) geometry.Box {
		return geometry.ToRelative(m.ApplyRect(geometry.ToAbsolute(b, size)), newSize)
	})
	return Sample{Image: out, Boxes: boxes}
}
