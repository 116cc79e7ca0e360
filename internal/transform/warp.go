package transform

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// warpAffine maps src through m onto an opaque black canvas of w x h pixels
// using bilinear sampling. Canvas pixels that no source pixel maps to stay
// black.
func warpAffine(src *image.NRGBA, m geometry.Matrix, w, h int) *image.NRGBA {
	dst := imaging.New(w, h, color.Black)
	if w <= 0 || h <= 0 {
		return dst
	}
	draw.BiLinear.Transform(dst, m.Aff3(), src, src.Bounds(), draw.Src, nil)
	return dst
}
