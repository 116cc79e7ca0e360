package geometry

import (
	"image"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestRoundTrip_WithinOnePixel verifies ToRelative(ToAbsolute(b)) stays within
// one pixel of b for any image size.
func TestRoundTrip_WithinOnePixel(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("relative(absolute(b)) is within a pixel of b", prop.ForAll(
		func(x, y, w, h float64, width, height int) bool {
			size := image.Pt(width, height)
			b := NewBox(x, y, w, h)
			got := ToRelative(ToAbsolute(b, size), size)

			fw, fh := float64(width), float64(height)
			return math.Abs(got.X-b.X)*fw <= 1 &&
				math.Abs(got.Y-b.Y)*fh <= 1 &&
				math.Abs(got.W-b.W)*fw <= 1 &&
				math.Abs(got.H-b.H)*fh <= 1
		},
		gen.Float64Range(-0.5, 1.5),
		gen.Float64Range(-0.5, 1.5),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.IntRange(1, 4096),
		gen.IntRange(1, 4096),
	))

	properties.TestingRun(t)
}

// TestFlip_Involution verifies flipping a box twice is the identity.
func TestFlip_Involution(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("flip(flip(b)) == b", prop.ForAll(
		func(x, y, w, h float64) bool {
			b := NewBox(x, y, w, h)
			got := b.Flip().Flip()
			return math.Abs(got.X-b.X) < 1e-9 && got.Y == b.Y && got.W == b.W && got.H == b.H
		},
		gen.Float64Range(-1, 2),
		gen.Float64Range(-1, 2),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

// TestApplyRect_ContainsMappedCorners verifies the enclosing rectangle of a
// rotated box contains every rotated corner.
func TestApplyRect_ContainsMappedCorners(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("enclosing rect contains all mapped corners", prop.ForAll(
		func(deg, x, y, w, h float64) bool {
			m := Rotation(Point{X: 50, Y: 40}, deg)
			r := Rect{X: x, Y: y, W: w, H: h}
			enc := m.ApplyRect(r)
			const eps = 1e-9
			for _, c := range r.Corners() {
				p := m.Apply(c)
				if p.X < enc.X-eps || p.X > enc.X+enc.W+eps || p.Y < enc.Y-eps || p.Y > enc.Y+enc.H+eps {
					return false
				}
			}
			return true
		},
		gen.Float64Range(-180, 180),
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 80),
		gen.Float64Range(0, 50),
		gen.Float64Range(0, 50),
	))

	properties.TestingRun(t)
}
