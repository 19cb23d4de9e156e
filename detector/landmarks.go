package detector

import (
	"image"

	"github.com/chewxy/math32"
	"gocv.io/x/gocv"
)

// FaceMeshPoints is the number of points in the standard face mesh topology.
const FaceMeshPoints = 468

// Eye contour indices in face mesh topology, ordered around the lid so they
// form a closed polygon (lower lid then upper lid).
var (
	LeftEyeContour = []int{
		263, 249, 390, 373, 374, 380, 381, 382, 362, 398, 384, 385, 386, 387, 388, 466,
	}
	RightEyeContour = []int{
		33, 7, 163, 144, 145, 153, 154, 155, 133, 173, 157, 158, 159, 160, 161, 246,
	}
)

// CoverageRadiusScale is applied to the largest centroid distance of an eye
// contour to size the extra coverage disc.
const CoverageRadiusScale = 0.8

// Landmark is one face mesh point in source pixel coordinates. Z is relative
// depth and is ignored for painting.
type Landmark struct {
	X, Y, Z float32
}

// Face is the landmark set of one face.
type Face struct {
	Landmarks []Landmark
}

// LandmarkEstimator locates a face mesh on a BGR image.
// Estimate returns ok == false when there is no face.
type LandmarkEstimator interface {
	Estimate(src gocv.Mat) (face Face, ok bool, err error)
}

// LandmarkStrategy paints eye contours from a face mesh.
type LandmarkStrategy struct {
	Estimator LandmarkEstimator
}

// NewLandmarkStrategy wraps an estimator.
func NewLandmarkStrategy(estimator LandmarkEstimator) *LandmarkStrategy {
	return &LandmarkStrategy{Estimator: estimator}
}

// Name implements Strategy.
func (s *LandmarkStrategy) Name() string {
	return "landmarks"
}

// Detect implements Strategy.
func (s *LandmarkStrategy) Detect(src gocv.Mat) (gocv.Mat, bool, error) {
	if s.Estimator == nil {
		return gocv.NewMat(), false, nil
	}

	face, ok, err := s.Estimator.Estimate(src)
	if err != nil {
		return gocv.NewMat(), false, err
	}
	if !ok || len(face.Landmarks) < FaceMeshPoints {
		return gocv.NewMat(), false, nil
	}

	regions := []EyeRegion{
		contourRegion(face.Landmarks, LeftEyeContour),
		contourRegion(face.Landmarks, RightEyeContour),
	}
	return paintRegions(src, regions), true, nil
}

// contourRegion builds the polygon for one eye plus a disc at its centroid
// whose radius is CoverageRadiusScale times the farthest contour point.
func contourRegion(points []Landmark, contour []int) EyeRegion {
	var cx, cy float32
	polygon := make([]image.Point, 0, len(contour))
	for _, idx := range contour {
		p := points[idx]
		cx += p.X
		cy += p.Y
		polygon = append(polygon, image.Pt(round(p.X), round(p.Y)))
	}
	n := float32(len(contour))
	cx /= n
	cy /= n

	var maxDist float32
	for _, idx := range contour {
		p := points[idx]
		dx, dy := p.X-cx, p.Y-cy
		if d := math32.Sqrt(dx*dx + dy*dy); d > maxDist {
			maxDist = d
		}
	}

	return EyeRegion{
		Center:  image.Pt(round(cx), round(cy)),
		Polygon: polygon,
		Radius:  round(CoverageRadiusScale * maxDist),
	}
}

func round(v float32) int {
	return int(math32.Floor(v + 0.5))
}
