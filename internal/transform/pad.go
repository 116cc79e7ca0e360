package transform

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/disintegration/imaging"
)

// PadToSquare centers the image on an opaque black square canvas whose side is
// the longer image side, using floor offsets. Boxes are shifted by the offset
// and re-normalized to the canvas.
func PadToSquare(s Sample) Sample {
	src := asNRGBA(s.Image)
	size := src.Bounds().Size()
	side := max(size.X, size.Y)
	dx := (side - size.X) / 2
	dy := (side - size.Y) / 2

	canvas := imaging.New(side, side, color.Black)
	out := imaging.Paste(canvas, src, image.Pt(dx, dy))
	newSize := image.Pt(side, side)

	boxes := mapBoxes(s.Boxes, func(b geometry.Box) geometry.Box {
		abs := geometry.ToAbsolute(b, size).Offset(float64(dx), float64(dy))
		return geometry.ToRelative(abs, newSize)
	})
	return Sample{Image: out, Boxes: boxes}
}
