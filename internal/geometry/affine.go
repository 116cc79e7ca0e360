package geometry

import (
	"math"

	"golang.org/x/image/math/f64"
)

// Matrix is a 2x3 affine map in row-major order:
//
//	x' = m[0]*x + m[1]*y + m[2]
//	y' = m[3]*x + m[4]*y + m[5]
//
// Coordinates are continuous: pixel (i, j) covers [i, i+1) x [j, j+1).
type Matrix [6]float64

// Identity returns the identity map.
func Identity() Matrix {
	return Matrix{1, 0, 0, 0, 1, 0}
}

// Rotation returns the map rotating by deg degrees about center, with positive
// angles turning counter-clockwise on screen (the getRotationMatrix2D
// convention with unit scale).
func Rotation(center Point, deg float64) Matrix {
	rad := deg * math.Pi / 180
	a := math.Cos(rad)
	b := math.Sin(rad)
	return Matrix{
		a, b, (1-a)*center.X - b*center.Y,
		-b, a, b*center.X + (1-a)*center.Y,
	}
}

// ShearMatrix returns x' = x + sx*y, y' = sy*x + y.
func ShearMatrix(sx, sy float64) Matrix {
	return Matrix{1, sx, 0, sy, 1, 0}
}

// Translate returns a copy of m followed by a translation of (dx, dy).
func (m Matrix) Translate(dx, dy float64) Matrix {
	m[2] += dx
	m[5] += dy
	return m
}

// Apply maps a point.
func (m Matrix) Apply(p Point) Point {
	return Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// ApplyRect maps the four corners of r and returns their enclosing rectangle.
func (m Matrix) ApplyRect(r Rect) Rect {
	corners := r.Corners()
	pts := make([]Point, len(corners))
	for i, c := range corners {
		pts[i] = m.Apply(c)
	}
	return Enclose(pts)
}

// Aff3 converts the matrix for use with golang.org/x/image/draw.
func (m Matrix) Aff3() f64.Aff3 {
	return f64.Aff3(m)
}
