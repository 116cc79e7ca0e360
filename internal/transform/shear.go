package transform

import (
	"math"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
)

// Shear applies x' = x + sx*y, y' = sy*x + y. The canvas grows to
// W + round(H*|sx|) by H + round(W*|sy|) so no content is clipped; negative
// factors shift the result back into the canvas. Boxes become the enclosing
// box of their four sheared corners.
func Shear(s Sample, sx, sy float64) Sample {
	src := asNRGBA(s.Image)
	size := src.Bounds().Size()
	w, h := float64(size.X), float64(size.Y)

	nw := size.X + int(math.Round(h*math.Abs(sx)))
	nh := size.Y + int(math.Round(w*math.Abs(sy)))
	m := geometry.ShearMatrix(sx, sy).Translate(math.Max(0, -sx*h), math.Max(0, -sy*w))

	out := warpAffine(src, m, nw, nh)
	newSize := out.Bounds().Size()

	boxes := mapBoxes(s.Boxes, func(b geometry.Box) geometry.Box {
		return geometry.ToRelative(m.ApplyRect(geometry.ToAbsolute(b, size)), newSize)
	})
	return Sample{Image: out, Boxes: boxes}
}
