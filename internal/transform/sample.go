// Package transform implements the geometric operations of the augmentation
// pipeline. Every operation takes a Sample, an image together with the boxes
// normalized to it, and returns a new Sample whose boxes are re-derived for the
// new image. Inputs are never modified.
package transform

import (
	"image"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/disintegration/imaging"
)

// Sample is an image together with the boxes normalized to its extent. A nil
// Boxes slice means no boxes were supplied and stays nil through every
// transform.
type Sample struct {
	Image image.Image
	Boxes []geometry.Box
}

// NewSample bundles an image with its boxes.
func NewSample(img image.Image, boxes []geometry.Box) Sample {
	return Sample{Image: img, Boxes: boxes}
}

// Size returns the image width and height.
func (s Sample) Size() image.Point {
	if s.Image == nil {
		return image.Point{}
	}
	return s.Image.Bounds().Size()
}

// HasBoxes reports whether boxes were supplied.
func (s Sample) HasBoxes() bool { return s.Boxes != nil }

// mapBoxes applies fn to every box, keeping a nil slice nil.
func mapBoxes(boxes []geometry.Box, fn func(geometry.Box) geometry.Box) []geometry.Box {
	if boxes == nil {
		return nil
	}
	out := make([]geometry.Box, len(boxes))
	for i, b := range boxes {
		out[i] = fn(b)
	}
	return out
}

// asNRGBA returns img as an origin-based *image.NRGBA, converting only when
// needed. The result must be treated as read-only.
func asNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}
