// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

package vncserver

import "fmt"

// Rect is a screen region with inclusive bounds. A Rect is valid only when
// XMax >= XMin and YMax >= YMin; EmptyRect returns the canonical invalid value.
type Rect struct {
	XMin, YMin, XMax, YMax int
}

// EmptyRect returns a rectangle that contains no pixels. Its bounds are
// inverted so that a Union with any valid rectangle yields that rectangle.
func EmptyRect() Rect {
	return Rect{XMin: maxCoord, YMin: maxCoord, XMax: -1, YMax: -1}
}

// maxCoord is larger than any protocol coordinate (u16).
const maxCoord = 1 << 17

// RectXYWH builds a rectangle from an origin and a size.
// A non-positive width or height yields an empty rectangle.
func RectXYWH(x, y, w, h int) Rect {
	if w <= 0 || h <= 0 {
		return EmptyRect()
	}
	return Rect{XMin: x, YMin: y, XMax: x + w - 1, YMax: y + h - 1}
}

// Valid reports whether the rectangle covers at least one pixel.
func (r Rect) Valid() bool {
	return r.XMax >= r.XMin && r.YMax >= r.YMin
}

// Empty is the negation of Valid.
func (r Rect) Empty() bool {
	return !r.Valid()
}

// Width returns the number of columns covered, or 0 for an empty rectangle.
func (r Rect) Width() int {
	if !r.Valid() {
		return 0
	}
	return r.XMax - r.XMin + 1
}

// Height returns the number of rows covered, or 0 for an empty rectangle.
func (r Rect) Height() int {
	if !r.Valid() {
		return 0
	}
	return r.YMax - r.YMin + 1
}

// Area returns the number of pixels covered.
func (r Rect) Area() int {
	return r.Width() * r.Height()
}

// Union returns the smallest rectangle containing both r and o.
// Empty operands are ignored.
func (r Rect) Union(o Rect) Rect {
	if !o.Valid() {
		return r
	}
	if !r.Valid() {
		return o
	}
	return Rect{
		XMin: min(r.XMin, o.XMin),
		YMin: min(r.YMin, o.YMin),
		XMax: max(r.XMax, o.XMax),
		YMax: max(r.YMax, o.YMax),
	}
}

// Intersect returns the overlap of r and o, which may be empty.
func (r Rect) Intersect(o Rect) Rect {
	if !r.Valid() || !o.Valid() {
		return EmptyRect()
	}
	out := Rect{
		XMin: max(r.XMin, o.XMin),
		YMin: max(r.YMin, o.YMin),
		XMax: min(r.XMax, o.XMax),
		YMax: min(r.YMax, o.YMax),
	}
	if !out.Valid() {
		return EmptyRect()
	}
	return out
}

// Clip restricts the rectangle to [0,width)x[0,height).
func (r Rect) Clip(width, height int) Rect {
	return r.Intersect(RectXYWH(0, 0, width, height))
}

// Contains reports whether o lies entirely within r.
func (r Rect) Contains(o Rect) bool {
	if !o.Valid() {
		return true
	}
	if !r.Valid() {
		return false
	}
	return o.XMin >= r.XMin && o.YMin >= r.YMin && o.XMax <= r.XMax && o.YMax <= r.YMax
}

// ContainsPoint reports whether the pixel (x, y) lies within r.
func (r Rect) ContainsPoint(x, y int) bool {
	return x >= r.XMin && x <= r.XMax && y >= r.YMin && y <= r.YMax
}

// String implements fmt.Stringer.
func (r Rect) String() string {
	if !r.Valid() {
		return "{empty}"
	}
	return fmt.Sprintf("{%d,%d,%d,%d}", r.XMin, r.YMin, r.XMax, r.YMax)
}
