package transform

import (
	"math"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/disintegration/imaging"
)

// Stretch resizes each axis independently to round(sx*W) by round(sy*H). A
// factor of 1.0 leaves that axis untouched. Both realized sizes are at least
// one pixel.
func Stretch(s Sample, sx, sy float64) Sample {
	src := asNRGBA(s.Image)
	size := src.Bounds().Size()
	nw := max(1, int(math.Round(sx*float64(size.X))))
	nh := max(1, int(math.Round(sy*float64(size.Y))))

	out := imaging.Resize(src, nw, nh, imaging.Linear)
	newSize := out.Bounds().Size()
	rx := float64(newSize.X) / float64(size.X)
	ry := float64(newSize.Y) / float64(size.Y)

	boxes := mapBoxes(s.Boxes, func(b geometry.Box) geometry.Box {
		abs := geometry.ToAbsolute(b, size).Scale(rx, ry)
		return geometry.ToRelative(abs, newSize)
	})
	return Sample{Image: out, Boxes: boxes}
}
