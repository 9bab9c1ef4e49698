package coords

import (
	"image"
	"math"
)

// Matrix is an affine transform [a b c d e f] mapping (x, y) to
// (a*x + c*y + e, b*x + d*y + f).
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2], m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2], m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4], m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// TransformRect maps an axis-aligned rectangle. Only scale and translation
// components are honoured.
func (m Matrix) TransformRect(r Rect) Rect {
	p := m.Transform(Point{X: r.X, Y: r.Y})
	return Rect{X: p.X, Y: p.Y, W: r.W * m[0], H: r.H * m[3]}
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rect is a rectangle in logical units with origin at the top-left corner.
type Rect struct {
	X, Y, W, H float64
}

func (r Rect) MaxX() float64 { return r.X + r.W }
func (r Rect) MaxY() float64 { return r.Y + r.H }

// Valid reports whether all components are finite and the size is positive.
func (r Rect) Valid() bool {
	return finite(r.X) && finite(r.Y) && finite(r.W) && finite(r.H) && r.W > 0 && r.H > 0
}

// Inset shrinks r by the given insets.
func (r Rect) Inset(in Insets) Rect {
	return Rect{X: r.X + in.L, Y: r.Y + in.T, W: r.W - in.L - in.R, H: r.H - in.T - in.B}
}

// Pixels returns the smallest integer rectangle covering r.
func (r Rect) Pixels() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.W)), int(math.Ceil(r.Y+r.H)),
	)
}

// Insets holds four-sided thicknesses (padding, border slices).
type Insets struct {
	T float64 `json:"t"`
	R float64 `json:"r"`
	B float64 `json:"b"`
	L float64 `json:"l"`
}

// Valid reports whether every side is finite and non-negative.
func (in Insets) Valid() bool {
	for _, v := range [4]float64{in.T, in.R, in.B, in.L} {
		if !finite(v) || v < 0 {
			return false
		}
	}
	return true
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
