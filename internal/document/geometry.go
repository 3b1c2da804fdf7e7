// Package document defines the page model shared by the translation engine:
// geometry, positioned tokens and spans, the error taxonomy, and the
// two-phase page handle used to redact and rebuild pages.
package document

import "math"

// Rect is an axis-aligned rectangle in page points.
// The origin is the top-left corner of the page and y grows downward.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width returns the horizontal extent of the rectangle
func (r Rect) Width() float64 {
	return r.X1 - r.X0
}

// Height returns the vertical extent of the rectangle
func (r Rect) Height() float64 {
	return r.Y1 - r.Y0
}

// Area returns the area, or 0 for degenerate rectangles
func (r Rect) Area() float64 {
	if r.Empty() {
		return 0
	}
	return r.Width() * r.Height()
}

// Empty reports whether the rectangle has no positive area
func (r Rect) Empty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

// Union returns the smallest rectangle containing both r and o.
// An empty operand is ignored.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{
		X0: math.Min(r.X0, o.X0),
		Y0: math.Min(r.Y0, o.Y0),
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
	}
}

// Expand grows the rectangle by the given amount on each edge
func (r Rect) Expand(left, top, right, bottom float64) Rect {
	return Rect{
		X0: r.X0 - left,
		Y0: r.Y0 - top,
		X1: r.X1 + right,
		Y1: r.Y1 + bottom,
	}
}

// Intersects reports whether the two rectangles overlap with positive area
func (r Rect) Intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

// Clip restricts the rectangle to the page bounds
func (r Rect) Clip(size Size) Rect {
	return Rect{
		X0: math.Max(0, r.X0),
		Y0: math.Max(0, r.Y0),
		X1: math.Min(size.Width, r.X1),
		Y1: math.Min(size.Height, r.Y1),
	}
}

// Size holds page dimensions in points
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// A4 is the fallback page size when a backend cannot report dimensions
var A4 = Size{Width: 595.276, Height: 841.890}
