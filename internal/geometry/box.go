// Package geometry converts bounding boxes between the normalized frame of an
// image and absolute pixel space, and provides the affine maps shared by the
// geometric transforms.
package geometry

import (
	"fmt"
	"image"
	"math"
)

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64
	Y float64
}

// Box is an axis-aligned box normalized to the extent of one image: X and Y
// are the top-left corner, W and H the size, all as fractions of the image
// width and height. Values are deliberately not clamped to [0,1].
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Rect is a box in absolute pixel units. Components are float64 so that
// transformed corners keep sub-pixel precision until re-normalized.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// NewBox builds a normalized box from its top-left corner and size.
func NewBox(x, y, w, h float64) Box {
	return Box{X: x, Y: y, W: w, H: h}
}

// BoxFromSlice parses a [x, y, w, h] slice.
func BoxFromSlice(v []float64) (Box, error) {
	if len(v) != 4 {
		return Box{}, fmt.Errorf("box must have 4 components, got %d", len(v))
	}
	return Box{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

// Slice returns the box as [x, y, w, h].
func (b Box) Slice() []float64 { return []float64{b.X, b.Y, b.W, b.H} }

// MaxX returns the right edge.
func (b Box) MaxX() float64 { return b.X + b.W }

// MaxY returns the bottom edge.
func (b Box) MaxY() float64 { return b.Y + b.H }

// Flip mirrors the box horizontally within its own normalized frame.
func (b Box) Flip() Box {
	return Box{X: 1 - (b.X + b.W), Y: b.Y, W: b.W, H: b.H}
}

// Clamp returns the part of the box that lies inside [0,1]x[0,1]. A box that is
// entirely outside collapses to zero width or height.
func (b Box) Clamp() Box {
	x0 := clamp01(b.X)
	y0 := clamp01(b.Y)
	x1 := clamp01(b.MaxX())
	y1 := clamp01(b.MaxY())
	return Box{X: x0, Y: y0, W: math.Max(0, x1-x0), H: math.Max(0, y1-y0)}
}

// Visible reports whether any part of the box overlaps the image.
func (b Box) Visible() bool {
	c := b.Clamp()
	return c.W > 0 && c.H > 0
}

// Corners returns the four corners of the box in clockwise order starting at
// the top-left.
func (r Rect) Corners() [4]Point {
	return [4]Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.W, Y: r.Y},
		{X: r.X + r.W, Y: r.Y + r.H},
		{X: r.X, Y: r.Y + r.H},
	}
}

// Offset translates the rectangle by dx, dy.
func (r Rect) Offset(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// Scale multiplies x coordinates by sx and y coordinates by sy.
func (r Rect) Scale(sx, sy float64) Rect {
	return Rect{X: r.X * sx, Y: r.Y * sy, W: r.W * sx, H: r.H * sy}
}

// ToAbsolute converts a normalized box into pixel units of an image with the
// given size, rounding every component to the nearest integer pixel.
func ToAbsolute(b Box, size image.Point) Rect {
	w, h := float64(size.X), float64(size.Y)
	return Rect{
		X: math.Round(b.X * w),
		Y: math.Round(b.Y * h),
		W: math.Round(b.W * w),
		H: math.Round(b.H * h),
	}
}

// ToRelative converts a pixel rectangle into the normalized frame of an image
// with the given size. No clamping is performed; a zero-sized image yields
// non-finite values.
func ToRelative(r Rect, size image.Point) Box {
	w, h := float64(size.X), float64(size.Y)
	return Box{X: r.X / w, Y: r.Y / h, W: r.W / w, H: r.H / h}
}

// Enclose returns the smallest rectangle containing all points.
func Enclose(pts []Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Union returns the smallest box containing every box. It is the usual way to
// derive a crop ROI that keeps all annotations visible.
func Union(boxes []Box) (Box, bool) {
	if len(boxes) == 0 {
		return Box{}, false
	}
	minX, minY := boxes[0].X, boxes[0].Y
	maxX, maxY := boxes[0].MaxX(), boxes[0].MaxY()
	for _, b := range boxes[1:] {
		minX = math.Min(minX, b.X)
		minY = math.Min(minY, b.Y)
		maxX = math.Max(maxX, b.MaxX())
		maxY = math.Max(maxY, b.MaxY())
	}
	return Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}, true
}

// Size returns the width and height of an image's bounds as a point.
func Size(img image.Image) image.Point {
	return img.Bounds().Size()
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
