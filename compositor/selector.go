package compositor

import (
	"math"

	"github.com/nvr-ai/go-eyes/logger"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Adaptive selection thresholds. Differences are mean absolute values over the
// core eye pixels on 8-bit channels.
const (
	// CoreMaskThreshold is the refined mask value above which a pixel is "core".
	CoreMaskThreshold = 128
	// LabRGBDiffThreshold selects lab for large colour jumps.
	LabRGBDiffThreshold = 80
	// ChromaHueDiffThreshold selects chroma for large hue shifts.
	ChromaHueDiffThreshold = 30
	// IrisRGBDiffThreshold selects iris for moderate colour jumps.
	IrisRGBDiffThreshold = 40
)

// Thresholds is the adaptive decision table.
type Thresholds struct {
	Core      uint8
	LabRGB    float64
	ChromaHue float64
	IrisRGB   float64
}

// DefaultThresholds returns the tuned table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Core:      CoreMaskThreshold,
		LabRGB:    LabRGBDiffThreshold,
		ChromaHue: ChromaHueDiffThreshold,
		IrisRGB:   IrisRGBDiffThreshold,
	}
}

// Decide applies the table, first match wins.
func (t Thresholds) Decide(rgbDiff, hueDiff float64) Mode {
	switch {
	case rgbDiff > t.LabRGB:
		return ModeLab
	case hueDiff > t.ChromaHue:
		return ModeChroma
	case rgbDiff > t.IrisRGB:
		return ModeIris
	default:
		return ModeChroma
	}
}

// Stats are the masked region differences the decision is made on.
type Stats struct {
	// CorePixels is the number of pixels above the core threshold.
	CorePixels int
	// RGBDiff is the mean absolute per-channel difference.
	RGBDiff float64
	// HueDiff is the mean absolute hue difference on OpenCV's 8-bit hue
	// scale. It is not corrected for wraparound, so reds on both ends of the
	// hue circle read as far apart.
	HueDiff float64
}

// SelectMode picks a concrete mode for src and gen under the refined mask.
// It returns chroma when there are no core pixels or anything fails.
func SelectMode(src, gen, mask gocv.Mat) Mode {
	return DefaultThresholds().Select(src, gen, mask)
}

// Select is SelectMode with this table.
func (t Thresholds) Select(src, gen, mask gocv.Mat) Mode {
	stats, err := t.Measure(src, gen, mask)
	if err != nil {
		logger.Warning("adaptive mode selection failed, using chroma",
			logger.LoggerOptions{Key: "error", Data: err.Error()},
		)
		return ModeChroma
	}
	if stats.CorePixels == 0 {
		return ModeChroma
	}

	mode := t.Decide(stats.RGBDiff, stats.HueDiff)
	logger.Debug("adaptive mode selected",
		logger.LoggerOptions{Key: "mode", Data: mode.String()},
		logger.LoggerOptions{Key: "rgb_diff", Data: stats.RGBDiff},
		logger.LoggerOptions{Key: "hue_diff", Data: stats.HueDiff},
		logger.LoggerOptions{Key: "core_pixels", Data: stats.CorePixels},
	)
	return mode
}

// Measure computes the core region statistics.
func (t Thresholds) Measure(src, gen, mask gocv.Mat) (stats Stats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("measuring blend statistics panicked: %v", r)
		}
	}()

	if err := checkInputs(src, gen, mask); err != nil {
		return Stats{}, err
	}

	srcHSV := gocv.NewMat()
	defer srcHSV.Close()
	genHSV := gocv.NewMat()
	defer genHSV.Close()
	gocv.CvtColor(src, &srcHSV, gocv.ColorBGRToHSV)
	gocv.CvtColor(gen, &genHSV, gocv.ColorBGRToHSV)

	m := mask.ToBytes()
	s, g := src.ToBytes(), gen.ToBytes()
	sh, gh := srcHSV.ToBytes(), genHSV.ToBytes()

	var rgbSum, hueSum float64
	for i, v := range m {
		if v <= t.Core {
			continue
		}
		stats.CorePixels++
		for c := 0; c < 3; c++ {
			rgbSum += math.Abs(float64(s[3*i+c]) - float64(g[3*i+c]))
		}
		hueSum += math.Abs(float64(sh[3*i]) - float64(gh[3*i]))
	}

	if stats.CorePixels > 0 {
		stats.RGBDiff = rgbSum / float64(3*stats.CorePixels)
		stats.HueDiff = hueSum / float64(stats.CorePixels)
	}
	return stats, nil
}
