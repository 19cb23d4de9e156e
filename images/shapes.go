// Package images - Raster helpers shared by the detection, refinement and compositing stages.
package images

import "image"

// Rect is a lightweight bounding box.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// RectFromRectangle converts an image.Rectangle as returned by the cascade detectors.
func RectFromRectangle(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Rectangle converts back to an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Width returns the horizontal extent of the box.
func (r Rect) Width() int {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the box.
func (r Rect) Height() int {
	return r.Y2 - r.Y1
}

// Area returns the box area in pixels; degenerate boxes have area 0.
func (r Rect) Area() int {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Center returns the integer centre of the box.
func (r Rect) Center() image.Point {
	return image.Pt((r.X1+r.X2)/2, (r.Y1+r.Y2)/2)
}

// CalculateIoU returns the Intersection over Union of two boxes:
//
//	IoU = Area of Intersection / Area of Union
//
// 1.0 means the boxes are identical, 0.0 means they do not overlap.
// Touching edges count as no overlap because X2/Y2 are exclusive.
//
// Example:
//
//	a := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	b := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	CalculateIoU(a, b) // 25 / 175 = 0.142857
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	// Inclusion-exclusion: Union(A, B) = Area(A) + Area(B) - Intersection(A, B).
	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return float32(interArea) / float32(unionArea)
}
