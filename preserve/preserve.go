// Package preserve - Restores the source eye colours on a generated face image.
//
// A generative makeup model tends to repaint the iris. Preserve finds the eyes
// on the source, builds a soft edge-aware mask and composites the source eyes
// back onto the generated image:
//
//	generated ──resize──┐
//	source ──detect──> raw mask ──refine──> alpha ──select mode──> composite
//
// The stage is best-effort. A detection miss or a failed transform ends in a
// passthrough of the (resized) generated image; only malformed input is
// reported as an error.
package preserve

import (
	"image"

	"github.com/nvr-ai/go-eyes/compositor"
	"github.com/nvr-ai/go-eyes/detector"
	"github.com/nvr-ai/go-eyes/images"
	"github.com/nvr-ai/go-eyes/logger"
	"github.com/nvr-ai/go-eyes/mask"
	"github.com/nvr-ai/go-eyes/profiler"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrInvalidInput is returned for an empty or non-BGR image or a negative radius.
var ErrInvalidInput = errors.New("invalid input image")

// Stage names recorded in Result.Timings.
const (
	StageResize    = "resize"
	StageDetect    = "detect"
	StageRefine    = "refine"
	StageComposite = "composite"
)

// Result is the outcome of one call.
type Result struct {
	// Image has the source dimensions. The caller closes it.
	Image gocv.Mat
	// Mode is the blend mode that produced Image; empty when nothing was blended.
	Mode compositor.Mode
	// Strategy is the detection strategy that found the eyes.
	Strategy string
	// Applied is false when Image is the generated image passed through.
	Applied bool
	Timings *profiler.TimeTracker
}

// Preserver holds the shared, read-only detector and compositor.
type Preserver struct {
	Detector   *detector.Detector
	Compositor *compositor.Compositor
	// Enabled false makes every call a passthrough.
	Enabled bool
}

// New builds an enabled Preserver.
func New(d *detector.Detector, c *compositor.Compositor) *Preserver {
	if d == nil {
		d = detector.New()
	}
	if c == nil {
		c = compositor.New()
	}
	return &Preserver{Detector: d, Compositor: c, Enabled: true}
}

// Preserve runs the pipeline. It returns an error only for invalid input;
// in every other case Result.Image is valid and owned by the caller.
func (p *Preserver) Preserve(source, generated gocv.Mat, featherRadiusPx int, mode compositor.Mode) (Result, error) {
	if err := validate(source, "source"); err != nil {
		return Result{}, err
	}
	if err := validate(generated, "generated"); err != nil {
		return Result{}, err
	}
	if featherRadiusPx < 0 {
		return Result{}, errors.Wrapf(ErrInvalidInput, "negative feather radius %d", featherRadiusPx)
	}
	if !mode.Valid() {
		return Result{}, errors.Wrapf(compositor.ErrUnknownMode, "%q", mode)
	}

	// Pixel stages read whole-buffer bytes; an ROI view would mix in the
	// parent's row stride.
	if !source.IsContinuous() {
		source = source.Clone()
		defer source.Close()
	}

	timings := profiler.NewTimeTracker()

	done := timings.StartOperation(StageResize)
	resized, err := images.ResizeMatTo(generated, image.Pt(source.Cols(), source.Rows()))
	done()
	if err != nil {
		return Result{}, errors.Wrap(err, "resize generated image")
	}

	if !p.Enabled {
		return Result{Image: resized, Timings: timings}, nil
	}

	out, used, strategy, err := p.run(source, resized, featherRadiusPx, mode, timings)
	if err != nil {
		out.Close()
		logger.Error("eye colour preservation failed, returning generated image",
			logger.LoggerOptions{Key: "error", Data: err.Error()},
		)
		return Result{Image: resized, Strategy: strategy, Timings: timings}, nil
	}
	if used == "" {
		out.Close()
		return Result{Image: resized, Strategy: strategy, Timings: timings}, nil
	}

	resized.Close()
	return Result{Image: out, Mode: used, Strategy: strategy, Applied: true, Timings: timings}, nil
}

// run is the part of the pipeline whose failures turn into passthrough.
// An empty used mode with a nil error means no eyes were found.
func (p *Preserver) run(
	source, generated gocv.Mat,
	radius int,
	mode compositor.Mode,
	timings *profiler.TimeTracker,
) (out gocv.Mat, used compositor.Mode, strategy string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, used = gocv.NewMat(), ""
			err = errors.Errorf("pipeline panicked: %v", r)
		}
	}()

	done := timings.StartOperation(StageDetect)
	raw, strategy := p.Detector.Detect(source)
	done()
	defer raw.Close()

	if strategy == "" || gocv.CountNonZero(raw) == 0 {
		logger.Debug("no eyes detected, passing generated image through")
		return gocv.NewMat(), "", strategy, nil
	}

	done = timings.StartOperation(StageRefine)
	alpha := mask.Refine(raw, source, radius)
	done()
	defer alpha.Close()

	done = timings.StartOperation(StageComposite)
	out, used, err = p.Compositor.Composite(source, generated, alpha, mode)
	done()
	if err != nil {
		return gocv.NewMat(), "", strategy, err
	}

	logger.Debug("eye colours preserved",
		logger.LoggerOptions{Key: "strategy", Data: strategy},
		logger.LoggerOptions{Key: "mode", Data: used.String()},
		logger.LoggerOptions{Key: "timings", Data: timings.String()},
	)
	return out, used, strategy, nil
}

func validate(m gocv.Mat, name string) error {
	if m.Empty() || m.Rows() == 0 || m.Cols() == 0 {
		return errors.Wrapf(ErrInvalidInput, "%s image is empty", name)
	}
	if m.Type() != gocv.MatTypeCV8UC3 {
		return errors.Wrapf(ErrInvalidInput, "%s image has type %v, want CV8UC3", name, m.Type())
	}
	return nil
}

// PreserveEyeColors is the single entry point used after model inference. It
// never fails: on any problem, including malformed input, it returns a copy
// of generated resized to the source size when possible. The caller closes
// the returned Mat.
func (p *Preserver) PreserveEyeColors(source, generated gocv.Mat, featherRadiusPx int, mode compositor.Mode) gocv.Mat {
	res, err := p.Preserve(source, generated, featherRadiusPx, mode)
	if err != nil {
		logger.Warning("eye colour preservation skipped",
			logger.LoggerOptions{Key: "error", Data: err.Error()},
		)
		if !source.Empty() && !generated.Empty() {
			if resized, rerr := images.ResizeMatTo(generated, image.Pt(source.Cols(), source.Rows())); rerr == nil {
				return resized
			}
		}
		return generated.Clone()
	}
	return res.Image
}
