// Package overlay draws bounding boxes onto a copy of an image for visual
// inspection.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/lucasb-eyer/go-colorful"
)

// Style controls how boxes are drawn.
type Style struct {
	BoxColor     color.Color
	CornerColor  color.Color
	Thickness    int
	CornerRadius int
}

// DefaultStyle draws red outlines with blue corner dots.
func DefaultStyle() Style {
	return Style{
		BoxColor:     color.RGBA{255, 0, 0, 255},
		CornerColor:  color.RGBA{0, 0, 255, 255},
		Thickness:    1,
		CornerRadius: 2,
	}
}

// Render returns an RGBA copy of img with every box outlined and its corners
// marked. Boxes are normalized to img; parts outside the image are clipped.
func Render(img image.Image, boxes []geometry.Box, style Style) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	size := b.Size()
	for _, box := range boxes {
		r := geometry.ToAbsolute(box, size)
		rect := image.Rect(int(r.X), int(r.Y), int(r.X+r.W), int(r.Y+r.H))
		if style.BoxColor != nil {
			DrawRect(dst, rect, style.BoxColor, style.Thickness)
		}
		if style.CornerColor != nil && style.CornerRadius > 0 {
			for _, c := range r.Corners() {
				drawDot(dst, image.Pt(int(c.X), int(c.Y)), style.CornerRadius, style.CornerColor)
			}
		}
	}
	return dst
}

// DrawRect draws the outline of rect, clipped to dst.
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	bounds := dst.Bounds()
	rect = rect.Canon()
	for t := range thickness {
		edges := []image.Rectangle{
			image.Rect(rect.Min.X, rect.Min.Y+t, rect.Max.X, rect.Min.Y+t+1),
			image.Rect(rect.Min.X, rect.Max.Y-1-t, rect.Max.X, rect.Max.Y-t),
			image.Rect(rect.Min.X+t, rect.Min.Y, rect.Min.X+t+1, rect.Max.Y),
			image.Rect(rect.Max.X-1-t, rect.Min.Y, rect.Max.X-t, rect.Max.Y),
		}
		for _, e := range edges {
			draw.Draw(dst, e.Intersect(bounds), &image.Uniform{col}, image.Point{}, draw.Src)
		}
	}
}

// drawDot fills a disc of the given radius around p.
func drawDot(dst *image.RGBA, p image.Point, radius int, col color.Color) {
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > radius*radius {
				continue
			}
			if q := p.Add(image.Pt(x, y)); q.In(dst.Bounds()) {
				dst.Set(q.X, q.Y, col)
			}
		}
	}
}

// ParseHexColor parses #RRGGBB or #RGB (the leading # is optional).
func ParseHexColor(s string) (color.Color, error) {
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 255}, nil
}

// StyleFromHex builds a style from hex colors. Empty strings keep the default
// color for that element.
func StyleFromHex(boxHex, cornerHex string) (Style, error) {
	style := DefaultStyle()
	if boxHex != "" {
		c, err := ParseHexColor(boxHex)
		if err != nil {
			return Style{}, err
		}
		style.BoxColor = c
	}
	if cornerHex != "" {
		c, err := ParseHexColor(cornerHex)
		if err != nil {
			return Style{}, err
		}
		style.CornerColor = c
	}
	return style, nil
}
