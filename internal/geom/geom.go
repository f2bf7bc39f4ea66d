// Package geom holds the normalized page-space math shared by the store and
// the interaction controllers. Every coordinate here is a fraction of the
// rendered page image box, so values nominally live in [0, 1].
package geom

import (
	"math"

	"github.com/golang/geo/r2"
)

const (
	// MinAnnotationSize is the smallest width or height an annotation may be
	// resized to.
	MinAnnotationSize = 0.02

	// MinDragSize is the extent below which a draw gesture on both axes is
	// treated as an accidental click.
	MinDragSize = 0.01
)

// Clamp limits value to [lo, hi]. When lo > hi the result is hi.
func Clamp(value, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, value))
}

// Point is a position, either in screen pixels or in normalized page space
// depending on the caller.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// RectFromCorners returns the bounding rectangle of two opposite corners given
// in any order.
func RectFromCorners(a, b Point) Rect {
	r := r2.RectFromPoints(r2.Point{X: a.X, Y: a.Y}, r2.Point{X: b.X, Y: b.Y})
	size := r.Size()
	return Rect{X: r.X.Lo, Y: r.Y.Lo, W: size.X, H: size.Y}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	if r.IsEmpty() {
		return false
	}
	return r.r2().ContainsPoint(r2.Point{X: p.X, Y: p.Y})
}

// IsEmpty reports whether r has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.W <= 0 || r.H <= 0
}

// Scale maps a normalized rectangle into the pixel box outer.
func (r Rect) Scale(outer Rect) Rect {
	return Rect{
		X: outer.X + r.X*outer.W,
		Y: outer.Y + r.Y*outer.H,
		W: r.W * outer.W,
		H: r.H * outer.H,
	}
}

func (r Rect) r2() r2.Rect {
	return r2.RectFromPoints(r2.Point{X: r.X, Y: r.Y}, r2.Point{X: r.X + r.W, Y: r.Y + r.H})
}

// Normalize converts a screen position into page-normalized coordinates
// relative to box. The result is not clamped. A degenerate box yields the
// origin.
func Normalize(p Point, box Rect) Point {
	if box.IsEmpty() {
		return Point{}
	}
	return Point{X: (p.X - box.X) / box.W, Y: (p.Y - box.Y) / box.H}
}

// NormalizeDelta converts a screen-space delta into a normalized delta for a
// page rendered at box's size.
func NormalizeDelta(dx, dy float64, box Rect) (float64, float64) {
	if box.IsEmpty() {
		return 0, 0
	}
	return dx / box.W, dy / box.H
}

// ClampPoint limits both coordinates of p to [0, 1].
func ClampPoint(p Point) Point {
	return Point{X: Clamp(p.X, 0, 1), Y: Clamp(p.Y, 0, 1)}
}

// Move proposes a new top-left corner for a rectangle of size w x h shifted by
// (dx, dy), keeping it inside the unit page on each axis independently.
func Move(x, y, w, h, dx, dy float64) (float64, float64) {
	return Clamp(x+dx, 0, 1-w), Clamp(y+dy, 0, 1-h)
}

// Resize proposes a new size from a gesture-start baseline grown by (dx, dy),
// floored at MinAnnotationSize and capped at the page edge.
func Resize(x, y, baseW, baseH, dx, dy float64) (float64, float64) {
	return Clamp(baseW+dx, MinAnnotationSize, 1-x), Clamp(baseH+dy, MinAnnotationSize, 1-y)
}

// FitRect floors r to the minimum annotation size and shifts it so it stays
// inside the unit page.
func FitRect(r Rect) Rect {
	r.W = Clamp(r.W, MinAnnotationSize, 1)
	r.H = Clamp(r.H, MinAnnotationSize, 1)
	r.X = Clamp(r.X, 0, 1-r.W)
	r.Y = Clamp(r.Y, 0, 1-r.H)
	return r
}
