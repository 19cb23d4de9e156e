// Package detector - Eye region detection with ordered fallback strategies.
//
// A Detector owns an ordered list of strategies. Each strategy paints a coverage
// mask of eye pixels for a BGR source image or reports that it found nothing.
// Strategies run strictly in order and the first one that paints at least one
// pixel wins; the rest are never invoked.
//
//	┌──────────────────────┐
//	│ LandmarkStrategy     │  468 point face mesh, eye contour polygons
//	└──────┬───────────────┘
//	┌──────────────────────┐
//	│ EnhancedCascade      │  4 cascades x 3 scales x 3 neighbour settings, NMS
//	└──────┬───────────────┘
//	┌──────────────────────┐
//	│ BasicCascade         │  2 cascades, one setting
//	└──────┬───────────────┘
//	┌──────────────────────┐
//	│ empty mask           │
//	└──────────────────────┘
package detector

import (
	"github.com/nvr-ai/go-eyes/images"
	"github.com/nvr-ai/go-eyes/logger"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Strategy produces a raw eye mask for a source image.
//
// Detect returns found == false when the strategy has nothing to contribute
// (no face, no boxes). Errors are reserved for unexpected failures; the
// Detector treats them the same as found == false. When found is false the
// returned Mat may be empty and is closed by the Detector.
type Strategy interface {
	Name() string
	Detect(src gocv.Mat) (mask gocv.Mat, found bool, err error)
}

// Detector runs strategies in order.
//
// A Detector holds no per-call state and is safe for concurrent use as long as
// its strategies are.
type Detector struct {
	strategies []Strategy
}

// New creates a detector that tries the strategies in the given order.
func New(strategies ...Strategy) *Detector {
	return &Detector{strategies: strategies}
}

// Strategies returns the configured strategy names, in order.
func (d *Detector) Strategies() []string {
	names := make([]string, 0, len(d.strategies))
	for _, s := range d.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Detect returns the raw mask of the first successful strategy and its name.
// When every strategy comes up empty the mask is all zero and the name is "".
// The mask always has the source's rows and cols; the caller closes it.
func (d *Detector) Detect(src gocv.Mat) (gocv.Mat, string) {
	for _, s := range d.strategies {
		mask, found, err := run(s, src)
		if err != nil {
			logger.Warning("eye detection strategy failed",
				logger.LoggerOptions{Key: "strategy", Data: s.Name()},
				logger.LoggerOptions{Key: "error", Data: err.Error()},
			)
			mask.Close()
			continue
		}
		if !found || mask.Empty() || !images.SameSize(mask, src) || gocv.CountNonZero(mask) == 0 {
			mask.Close()
			continue
		}

		logger.Debug("eye region detected",
			logger.LoggerOptions{Key: "strategy", Data: s.Name()},
			logger.LoggerOptions{Key: "pixels", Data: gocv.CountNonZero(mask)},
		)
		return mask, s.Name()
	}

	return images.NewMask(src.Rows(), src.Cols()), ""
}

// run shields the loop from panics raised inside a strategy (gocv surfaces
// some OpenCV assertions as panics).
func run(s Strategy, src gocv.Mat) (mask gocv.Mat, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			mask = gocv.NewMat()
			found = false
			err = errors.Errorf("strategy %s panicked: %v", s.Name(), r)
		}
	}()

	mask, found, err = s.Detect(src)
	if err != nil {
		return mask, false, errors.Wrap(err, s.Name())
	}
	return mask, found, nil
}

// grayscale converts a BGR source to 8-bit luminance.
func grayscale(src gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray
}
