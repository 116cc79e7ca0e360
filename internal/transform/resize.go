package transform

import (
	"math"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/disintegration/imaging"
)

// ResizeMax scales the image so its longer side equals target, preserving the
// aspect ratio. Both axes scale by the same factor, so normalized boxes are
// still valid and are passed through unchanged.
func ResizeMax(s Sample, target int) Sample {
	src := asNRGBA(s.Image)
	size := src.Bounds().Size()
	longest := max(size.X, size.Y)
	if longest == 0 || target <= 0 {
		return Sample{Image: imaging.Clone(src), Boxes: copyBoxes(s.Boxes)}
	}

	scale := float64(target) / float64(longest)
	nw := max(1, int(math.Round(float64(size.X)*scale)))
	nh := max(1, int(math.Round(float64(size.Y)*scale)))

	return Sample{
		Image: imaging.Resize(src, nw, nh, imaging.Lanczos),
		Boxes: copyBoxes(s.Boxes),
	}
}

func copyBoxes(boxes []geometry.Box) []geometry.Box {
	if boxes == nil {
		return nil
	}
	return append([]geometry.Box{}, boxes...)
}
