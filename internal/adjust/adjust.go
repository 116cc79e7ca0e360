// Package adjust implements pixel-value adjustments. None of them change the
// image extent, so boxes are unaffected.
package adjust

import (
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// Defaults used when an adjustment is requested without its parameters.
const (
	DefaultAlpha      = 1.0
	DefaultBeta       = 0.0
	DefaultKernelSize = 3
	DefaultStdDev     = 1.0
)

// Intensity computes clip(alpha*v + beta) for every color channel. Alpha is
// left untouched. A nil alpha or beta falls back to 1.0 or 0.0 respectively.
func Intensity(img image.Image, alpha, beta *float64) *image.NRGBA {
	if alpha == nil && beta == nil {
		slog.Warn("Intensity adjustment has neither alpha nor beta, using defaults",
			"alpha", DefaultAlpha, "beta", DefaultBeta)
	}
	a, b := DefaultAlpha, DefaultBeta
	if alpha != nil {
		a = *alpha
	}
	if beta != nil {
		b = *beta
	}

	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clip8(a*float64(c.R) + b),
			G: clip8(a*float64(c.G) + b),
			B: clip8(a*float64(c.B) + b),
			A: c.A,
		}
	})
}

// HSV shifts hue, saturation and value. Deltas use 8-bit HSV units: hue spans
// 0..180 (two degrees per unit) and wraps around, saturation and value span
// 0..255 and are clipped.
func HSV(img image.Image, dh, ds, dv float64) *image.NRGBA {
	hueShift := dh * 2
	satShift := ds / 255
	valShift := dv / 255

	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		col := colorful.Color{
			R: float64(c.R) / 255,
			G: float64(c.G) / 255,
			B: float64(c.B) / 255,
		}
		h, s, v := col.Hsv()
		h = math.Mod(h+hueShift, 360)
		if h < 0 {
			h += 360
		}
		s = clamp01(s + satShift)
		v = clamp01(v + valShift)

		r, g, b := colorful.Hsv(h, s, v).Clamped().RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: c.A}
	})
}

// Blur applies a Gaussian blur. When stdDev is missing or zero it is derived
// from the kernel size the same way OpenCV does; a missing kernel size
// defaults to 3.
func Blur(img image.Image, kernelSize *int, stdDev *float64) *image.NRGBA {
	if kernelSize == nil && stdDev == nil {
		slog.Warn("Blur has neither kernel size nor std dev, using defaults",
			"kernel_size", DefaultKernelSize, "std_dev", DefaultStdDev)
		return imaging.Blur(img, DefaultStdDev)
	}

	k := DefaultKernelSize
	if kernelSize != nil {
		k = *kernelSize
	}
	var sigma float64
	if stdDev != nil {
		sigma = *stdDev
	}
	if sigma <= 0 {
		sigma = SigmaForKernel(k)
	}
	return imaging.Blur(img, sigma)
}

// SigmaForKernel returns the standard deviation OpenCV uses for a Gaussian
// kernel of size k when none is given. Kernel sizes below 1 yield 0.
func SigmaForKernel(k int) float64 {
	if k < 1 {
		return 0
	}
	return 0.3*((float64(k)-1)*0.5-1) + 0.8
}

// Gray converts to grayscale while keeping three identical color channels.
func Gray(img image.Image) *image.NRGBA {
	return imaging.Grayscale(img)
}

func clip8(v float64) uint8 {
	return uint8(math.Round(math.Min(math.Max(v, 0), 255)))
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
