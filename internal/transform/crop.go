package transform

import (
	"image"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/disintegration/imaging"
)

// Crop extracts rect, given relative to the image's top-left corner, and
// re-expresses every box in the cropped frame. The rectangle is intersected
// with the image; a rectangle outside the image yields an empty image.
func Crop(s Sample, rect image.Rectangle) Sample {
	src := asNRGBA(s.Image)
	size := src.Bounds().Size()
	r := rect.Intersect(src.Bounds())

	out := imaging.Crop(src, r)
	newSize := r.Size()

	boxes := mapBoxes(s.Boxes, func(b geometry.Box) geometry.Box {
		abs := geometry.ToAbsolute(b, size).Offset(-float64(r.Min.X), -float64(r.Min.Y))
		return geometry.ToRelative(abs, newSize)
	})
	return Sample{Image: out, Boxes: boxes}
}
