package transform

import (
	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/disintegration/imaging"
)

// Flip mirrors the image left to right. Boxes are mirrored in their own
// normalized frame, which does not depend on the image size.
func Flip(s Sample) Sample {
	return Sample{
		Image: imaging.FlipH(s.Image),
		Boxes: mapBoxes(s.Boxes, geometry.Box.Flip),
	}
}
