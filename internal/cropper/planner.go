// Package cropper samples random crop rectangles that keep a region of
// interest fully visible.
package cropper

import (
	"image"
	"math"
	"math/rand/v2"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
)

// snap absorbs float error so that, for example, 0.9*100 lands on pixel 90.
const snap = 1e-9

// Bounds returns the ROI in pixel space of an image with the given size. The
// ROI is clamped to [0,1] first and edges are floored.
func Bounds(size image.Point, roi geometry.Box) image.Rectangle {
	r := roi.Clamp()
	w, h := float64(size.X), float64(size.Y)
	return image.Rect(
		floorPx(r.X, w),
		floorPx(r.Y, h),
		floorPx(r.MaxX(), w),
		floorPx(r.MaxY(), h),
	)
}

func floorPx(v, n float64) int {
	return int(math.Floor(v*n + snap))
}

// Plan samples a crop rectangle of an image with the given size that contains
// the ROI. cropRange is the slack fraction: 0 makes every crop edge touch the
// ROI, 1 lets every edge land anywhere between the ROI and the image border.
// Each edge is drawn independently and uniformly over its inclusive interval.
//
// With padToSquare the shorter side of the sampled rectangle is then grown
// symmetrically toward a square without leaving the image.
func Plan(rng *rand.Rand, size image.Point, roi geometry.Box, cropRange float64, padToSquare bool) image.Rectangle {
	cropRange = math.Min(math.Max(cropRange, 0), 1)
	b := Bounds(size, roi)

	x0 := between(rng, int(math.Round((1-cropRange)*float64(b.Min.X))), b.Min.X)
	y0 := between(rng, int(math.Round((1-cropRange)*float64(b.Min.Y))), b.Min.Y)
	x1 := between(rng, b.Max.X, b.Max.X+int(math.Round(cropRange*float64(size.X-b.Max.X))))
	y1 := between(rng, b.Max.Y, b.Max.Y+int(math.Round(cropRange*float64(size.Y-b.Max.Y))))

	rect := image.Rect(x0, y0, x1, y1)
	if padToSquare {
		rect = Square(rect, size)
	}
	return rect
}

// Square grows the shorter side of rect toward the length of the longer one,
// splitting the growth evenly between both edges. Growth blocked by the image
// border moves to the opposite edge; the result never exceeds the image.
func Square(rect image.Rectangle, size image.Point) image.Rectangle {
	w, h := rect.Dx(), rect.Dy()
	switch {
	case w < h:
		rect.Min.X, rect.Max.X = grow(rect.Min.X, rect.Max.X, h, size.X)
	case h < w:
		rect.Min.Y, rect.Max.Y = grow(rect.Min.Y, rect.Max.Y, w, size.Y)
	}
	return rect
}

// grow widens [lo, hi) toward length target inside [0, limit).
func grow(lo, hi, target, limit int) (int, int) {
	target = min(target, limit)
	extra := target - (hi - lo)
	if extra <= 0 {
		return lo, hi
	}
	lo -= extra / 2
	hi += extra - extra/2
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > limit {
		lo -= hi - limit
		hi = limit
	}
	return max(lo, 0), hi
}

// between draws an integer uniformly from [lo, hi]. An empty interval yields lo.
func between(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}
