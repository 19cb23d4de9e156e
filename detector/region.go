package detector

import (
	"image"
	"image/color"

	"github.com/nvr-ai/go-eyes/images"
	"gocv.io/x/gocv"
)

// filled is the OpenCV thickness value for solid shapes.
const filled = -1

var maskOn = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// EyeRegion is the geometry painted into the mask for one eye. A region is an
// axis aligned ellipse, a polygon, or both.
type EyeRegion struct {
	Center  image.Point
	Axes    image.Point
	Polygon []image.Point
	// Radius of an extra disc around Center; 0 means none.
	Radius int
}

// EllipseInBox returns an ellipse centred on the box with semi-axes scaled by
// the box width and height.
func EllipseInBox(box images.Rect, fx, fy float64) EyeRegion {
	return EyeRegion{
		Center: box.Center(),
		Axes:   image.Pt(atLeastOne(float64(box.Width())*fx), atLeastOne(float64(box.Height())*fy)),
	}
}

func atLeastOne(v float64) int {
	if n := int(v + 0.5); n > 1 {
		return n
	}
	return 1
}

// Paint ORs the region into an 8-bit mask at full strength.
func (r EyeRegion) Paint(mask *gocv.Mat) {
	if len(r.Polygon) >= 3 {
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{r.Polygon})
		gocv.FillPoly(mask, pv, maskOn)
		pv.Close()
	}
	if r.Radius > 0 {
		gocv.Circle(mask, r.Center, r.Radius, maskOn, filled)
	}
	if r.Axes.X > 0 && r.Axes.Y > 0 {
		gocv.Ellipse(mask, r.Center, r.Axes, 0, 0, 360, maskOn, filled)
	}
}

// paintRegions allocates a mask the size of src and paints every region.
func paintRegions(src gocv.Mat, regions []EyeRegion) gocv.Mat {
	mask := images.NewMask(src.Rows(), src.Cols())
	for _, r := range regions {
		r.Paint(&mask)
	}
	return mask
}
