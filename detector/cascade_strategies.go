package detector

import (
	"github.com/nvr-ai/go-eyes/images"
	"github.com/nvr-ai/go-eyes/models/postprocess"
	"gocv.io/x/gocv"
)

// MaxEyes is the number of boxes kept by the cascade strategies: one left
// and one right eye.
const MaxEyes = 2

// Ellipse scales applied to a kept cascade box.
const (
	EnhancedOuterScaleX = 0.4
	EnhancedOuterScaleY = 0.3
	EnhancedIrisScale   = 0.2
	BasicEllipseScale   = 0.35
)

// EnhancedCascadeStrategy sweeps every detector over a grid of scale factors
// and neighbour thresholds on an equalised grayscale image, then deduplicates
// the pooled boxes.
type EnhancedCascadeStrategy struct {
	Detectors    []RectDetector
	ScaleFactors []float64
	MinNeighbors []int
	IoUThreshold float32
}

// NewEnhancedCascadeStrategy returns the strategy with the default sweep:
// scales {1.05, 1.1, 1.2} x neighbours {3, 4, 5}, NMS at IoU 0.3.
func NewEnhancedCascadeStrategy(detectors ...RectDetector) *EnhancedCascadeStrategy {
	return &EnhancedCascadeStrategy{
		Detectors:    detectors,
		ScaleFactors: []float64{1.05, 1.1, 1.2},
		MinNeighbors: []int{3, 4, 5},
		IoUThreshold: 0.3,
	}
}

// Name implements Strategy.
func (s *EnhancedCascadeStrategy) Name() string {
	return "enhanced-cascade"
}

// Detect implements Strategy.
func (s *EnhancedCascadeStrategy) Detect(src gocv.Mat) (gocv.Mat, bool, error) {
	if len(s.Detectors) == 0 {
		return gocv.NewMat(), false, nil
	}

	gray := grayscale(src)
	defer gray.Close()
	equalized := gocv.NewMat()
	defer equalized.Close()
	gocv.EqualizeHist(gray, &equalized)

	var pooled []postprocess.Result
	for class, d := range s.Detectors {
		for _, scale := range s.ScaleFactors {
			for _, neighbors := range s.MinNeighbors {
				var boxes []images.Rect
				for _, r := range d.DetectMultiScale(equalized, scale, neighbors) {
					boxes = append(boxes, images.RectFromRectangle(r))
				}
				pooled = append(pooled, postprocess.ByArea(boxes, class)...)
			}
		}
	}
	if len(pooled) == 0 {
		return gocv.NewMat(), false, nil
	}

	// Largest first, so NMS keeps the bigger box of an overlapping pair.
	postprocess.SortByScore(pooled)
	kept := postprocess.ApplyGreedyNMS(pooled, &postprocess.NMSConfig{
		IoUThreshold: s.IoUThreshold,
		MaxKeep:      MaxEyes,
	})

	regions := make([]EyeRegion, 0, 2*len(kept))
	for _, k := range kept {
		regions = append(regions,
			EllipseInBox(k.Box, EnhancedOuterScaleX, EnhancedOuterScaleY),
			EllipseInBox(k.Box, EnhancedIrisScale, EnhancedIrisScale),
		)
	}
	return paintRegions(src, regions), true, nil
}

// BasicCascadeStrategy runs the detectors once with a fixed setting on the
// plain grayscale image.
type BasicCascadeStrategy struct {
	Detectors    []RectDetector
	ScaleFactor  float64
	MinNeighbors int
}

// NewBasicCascadeStrategy returns the strategy at scale 1.1, 5 neighbours.
func NewBasicCascadeStrategy(detectors ...RectDetector) *BasicCascadeStrategy {
	return &BasicCascadeStrategy{
		Detectors:    detectors,
		ScaleFactor:  1.1,
		MinNeighbors: 5,
	}
}

// Name implements Strategy.
func (s *BasicCascadeStrategy) Name() string {
	return "basic-cascade"
}

// Detect implements Strategy.
func (s *BasicCascadeStrategy) Detect(src gocv.Mat) (gocv.Mat, bool, error) {
	if len(s.Detectors) == 0 {
		return gocv.NewMat(), false, nil
	}

	gray := grayscale(src)
	defer gray.Close()

	var found []postprocess.Result
	for class, d := range s.Detectors {
		var boxes []images.Rect
		for _, r := range d.DetectMultiScale(gray, s.ScaleFactor, s.MinNeighbors) {
			boxes = append(boxes, images.RectFromRectangle(r))
		}
		found = append(found, postprocess.ByArea(boxes, class)...)
	}
	if len(found) == 0 {
		return gocv.NewMat(), false, nil
	}

	kept := postprocess.TopK(found, MaxEyes)
	regions := make([]EyeRegion, 0, len(kept))
	for _, k := range kept {
		regions = append(regions, EllipseInBox(k.Box, BasicEllipseScale, BasicEllipseScale))
	}
	return paintRegions(src, regions), true, nil
}

// DefaultStrategies builds the standard fallback order. A nil estimator skips
// the landmark strategy; a nil cascade set skips both cascade strategies.
func DefaultStrategies(estimator LandmarkEstimator, cascades *CascadeSet) []Strategy {
	var strategies []Strategy
	if estimator != nil {
		strategies = append(strategies, NewLandmarkStrategy(estimator))
	}
	if cascades != nil {
		strategies = append(strategies,
			NewEnhancedCascadeStrategy(cascades.Detectors(AllCascades...)...),
			NewBasicCascadeStrategy(cascades.Detectors(CascadeEye, CascadeEyeGlasses)...),
		)
	}
	return strategies
}
