// Package test - Synthetic fixtures and hand-written fakes shared by the package tests.
package test

import (
	"image"
	"image/color"
	"math"
	"sync/atomic"

	"github.com/nvr-ai/go-eyes/detector"
	"github.com/nvr-ai/go-eyes/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Colours used by the synthetic faces, as BGR triples.
var (
	Skin     = [3]uint8{140, 172, 224}
	DarkBlue = [3]uint8{140, 40, 20}
	Brown    = [3]uint8{30, 60, 110}
)

// Eye is one synthetic eye: a filled axis aligned ellipse.
type Eye struct {
	Center image.Point
	Axes   image.Point
}

// Bounds returns the ellipse bounding box.
func (e Eye) Bounds() image.Rectangle {
	return image.Rect(e.Center.X-e.Axes.X, e.Center.Y-e.Axes.Y, e.Center.X+e.Axes.X+1, e.Center.Y+e.Axes.Y+1)
}

// MockFaceGenerator creates deterministic face-like test images: a flat skin
// background with two elliptical eyes.
//
// @example
// gen := NewMockFaceGenerator(512, 512)
// src := gen.Face(test.DarkBlue)
// defer src.Close()
type MockFaceGenerator struct {
	width  int
	height int
	eyes   []Eye
}

// NewMockFaceGenerator places two eyes on the upper half of a width x height frame.
func NewMockFaceGenerator(width, height int) *MockFaceGenerator {
	axes := image.Pt(width/12, height/20)
	return &MockFaceGenerator{
		width:  width,
		height: height,
		eyes: []Eye{
			{Center: image.Pt(width*35/100, height*2/5), Axes: axes},
			{Center: image.Pt(width*65/100, height*2/5), Axes: axes},
		},
	}
}

// Eyes returns the eye geometry.
func (g *MockFaceGenerator) Eyes() []Eye {
	return g.eyes
}

// Uniform creates a flat frame with no features at all.
func (g *MockFaceGenerator) Uniform(bgr [3]uint8) gocv.Mat {
	return images.NewFilled(g.height, g.width, bgr[0], bgr[1], bgr[2])
}

// Face creates the skin frame with both eyes painted in eyeColour.
func (g *MockFaceGenerator) Face(eyeColour [3]uint8) gocv.Mat {
	frame := g.Uniform(Skin)
	c := color.RGBA{R: eyeColour[2], G: eyeColour[1], B: eyeColour[0], A: 255}
	for _, e := range g.eyes {
		gocv.Ellipse(&frame, e.Center, e.Axes, 0, 0, 360, c, -1)
	}
	return frame
}

// EyeBoxes returns the eye bounding boxes, what a perfect cascade would report.
func (g *MockFaceGenerator) EyeBoxes() []image.Rectangle {
	boxes := make([]image.Rectangle, 0, len(g.eyes))
	for _, e := range g.eyes {
		boxes = append(boxes, e.Bounds())
	}
	return boxes
}

// FaceMesh returns a landmark set whose eye contours trace the synthetic eyes.
// Non-eye points sit at the frame centre.
func (g *MockFaceGenerator) FaceMesh() detector.Face {
	points := make([]detector.Landmark, detector.FaceMeshPoints)
	for i := range points {
		points[i] = detector.Landmark{X: float32(g.width) / 2, Y: float32(g.height) / 2}
	}

	// Image-left eye is the subject's right eye.
	place := func(contour []int, e Eye) {
		for i, idx := range contour {
			theta := 2 * math.Pi * float64(i) / float64(len(contour))
			points[idx] = detector.Landmark{
				X: float32(float64(e.Center.X) + float64(e.Axes.X)*math.Cos(theta)),
				Y: float32(float64(e.Center.Y) + float64(e.Axes.Y)*math.Sin(theta)),
			}
		}
	}
	place(detector.RightEyeContour, g.eyes[0])
	place(detector.LeftEyeContour, g.eyes[1])

	return detector.Face{Landmarks: points}
}

// CountingRectDetector returns fixed boxes and counts invocations.
type CountingRectDetector struct {
	Boxes []image.Rectangle
	calls atomic.Int64
}

// DetectMultiScale implements detector.RectDetector.
func (d *CountingRectDetector) DetectMultiScale(gocv.Mat, float64, int) []image.Rectangle {
	d.calls.Add(1)
	out := make([]image.Rectangle, len(d.Boxes))
	copy(out, d.Boxes)
	return out
}

// Calls returns how many times DetectMultiScale ran.
func (d *CountingRectDetector) Calls() int64 {
	return d.calls.Load()
}

// StaticLandmarkEstimator returns a fixed face, or no face when Face is empty.
type StaticLandmarkEstimator struct {
	Face  detector.Face
	Err   error
	calls atomic.Int64
}

// Estimate implements detector.LandmarkEstimator.
func (e *StaticLandmarkEstimator) Estimate(gocv.Mat) (detector.Face, bool, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return detector.Face{}, false, e.Err
	}
	return e.Face, len(e.Face.Landmarks) > 0, nil
}

// Calls returns how many times Estimate ran.
func (e *StaticLandmarkEstimator) Calls() int64 {
	return e.calls.Load()
}

// ErrInjected is the error returned by the failing fakes.
var ErrInjected = errors.New("injected failure")

// FailingStrategy always errors.
type FailingStrategy struct{}

// Name implements detector.Strategy.
func (FailingStrategy) Name() string { return "failing" }

// Detect implements detector.Strategy.
func (FailingStrategy) Detect(gocv.Mat) (gocv.Mat, bool, error) {
	return gocv.NewMat(), false, ErrInjected
}

// PanickingStrategy always panics.
type PanickingStrategy struct{}

// Name implements detector.Strategy.
func (PanickingStrategy) Name() string { return "panicking" }

// Detect implements detector.Strategy.
func (PanickingStrategy) Detect(gocv.Mat) (gocv.Mat, bool, error) {
	panic("opencv assertion")
}

// MaskAt reads a single mask value.
func MaskAt(mask gocv.Mat, p image.Point) uint8 {
	return mask.GetUCharAt(p.Y, p.X)
}

// PixelAt reads one BGR pixel.
func PixelAt(img gocv.Mat, p image.Point) [3]uint8 {
	v := img.GetVecbAt(p.Y, p.X)
	return [3]uint8{v[0], v[1], v[2]}
}
