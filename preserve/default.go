package preserve

import (
	"image"
	"sync"

	"github.com/nvr-ai/go-eyes/compositor"
	"github.com/nvr-ai/go-eyes/config"
	"github.com/nvr-ai/go-eyes/detector"
	"github.com/nvr-ai/go-eyes/images"
	"github.com/nvr-ai/go-eyes/inference/facemesh"
	"github.com/nvr-ai/go-eyes/logger"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	defaultOnce      sync.Once
	defaultPreserver *Preserver
)

// Default returns the process-wide Preserver built from config.Default. It
// uses the cascade strategies only.
func Default() *Preserver {
	defaultOnce.Do(func() {
		p, _, err := NewFromConfig(config.Default())
		if err != nil {
			logger.Warning("default eye preserver has no detectors",
				logger.LoggerOptions{Key: "error", Data: err.Error()},
			)
			p = New(nil, nil)
		}
		defaultPreserver = p
	})
	return defaultPreserver
}

// PreserveEyeColors runs the Default preserver. See Preserver.PreserveEyeColors.
func PreserveEyeColors(source, generated gocv.Mat, featherRadiusPx int, mode compositor.Mode) gocv.Mat {
	return Default().PreserveEyeColors(source, generated, featherRadiusPx, mode)
}

// NewFromConfig loads the cascades and, when configured, the face mesh model.
// The returned close function releases them. A missing landmark model is not
// an error; missing cascades are only an error when no strategy is left.
func NewFromConfig(cfg config.Config) (*Preserver, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, func() {}, err
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var estimator detector.LandmarkEstimator
	if cfg.FaceMeshModelPath != "" {
		fmCfg := facemesh.DefaultConfig(cfg.FaceMeshModelPath)
		fmCfg.FaceDetectorModelPath = cfg.FaceDetectorModelPath
		fmCfg.OnnxRuntimeLibPath = cfg.OnnxRuntimeLibPath

		est, err := facemesh.New(fmCfg)
		if err != nil {
			logger.Warning("face mesh unavailable, landmark strategy disabled",
				logger.LoggerOptions{Key: "error", Data: err.Error()},
			)
		} else {
			estimator = est
			closers = append(closers, est.Close)
		}
	}

	cascades, err := detector.LoadCascades(cfg.CascadeDir)
	if err != nil {
		if estimator == nil {
			closeAll()
			return nil, func() {}, errors.Wrap(err, "no eye detection strategy available")
		}
		logger.Warning("cascade strategies disabled", logger.LoggerOptions{Key: "error", Data: err.Error()})
		cascades = nil
	} else {
		closers = append(closers, cascades.Close)
	}

	d := detector.New(detector.DefaultStrategies(estimator, cascades)...)
	logger.Info("eye preserver ready", logger.LoggerOptions{Key: "strategies", Data: d.Strategies()})

	p := New(d, compositor.New())
	p.Enabled = cfg.Enabled
	return p, closeAll, nil
}

// PreserveImages is the image.Image boundary: it converts both images, runs
// Preserve and converts the result back. The returned Result reports mode,
// strategy and timings; its Image has already been released.
func (p *Preserver) PreserveImages(source, generated image.Image, featherRadiusPx int, mode compositor.Mode) (*image.RGBA, Result, error) {
	src, err := images.ToMat(source)
	if err != nil {
		return nil, Result{}, errors.Wrap(ErrInvalidInput, err.Error())
	}
	defer src.Close()

	gen, err := images.ToMat(generated)
	if err != nil {
		return nil, Result{}, errors.Wrap(ErrInvalidInput, err.Error())
	}
	defer gen.Close()

	res, err := p.Preserve(src, gen, featherRadiusPx, mode)
	if err != nil {
		return nil, Result{}, err
	}
	defer res.Image.Close()

	out, err := images.ToImage(res.Image)
	if err != nil {
		return nil, res, errors.Wrap(err, "convert result")
	}
	return out, res, nil
}
