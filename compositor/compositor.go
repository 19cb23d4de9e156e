// Package compositor - Blends the source eyes into the generated image.
//
// Four blenders share one alpha (refined mask / 255). A failing blender is
// never fatal: the compositor walks a fixed fallback chain
//
//	iris ─┐
//	      ├─> chroma ─> rgb
//	lab ──┘
//
// and only reports an error when the last link fails too.
package compositor

import (
	"github.com/nvr-ai/go-eyes/images"
	"github.com/nvr-ai/go-eyes/logger"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrAllBlendersFailed is returned when every blender of a fallback chain failed.
var ErrAllBlendersFailed = errors.New("all blenders failed")

// Compositor maps modes to blenders and runs the fallback chain.
//
// A Compositor is read-only after construction and safe for concurrent use
// when its blenders are.
type Compositor struct {
	blenders   map[Mode]Blender
	thresholds Thresholds
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithBlender replaces the blender used for mode.
func WithBlender(mode Mode, b Blender) Option {
	return func(c *Compositor) {
		c.blenders[mode] = b
	}
}

// WithThresholds replaces the adaptive decision table.
func WithThresholds(t Thresholds) Option {
	return func(c *Compositor) {
		c.thresholds = t
	}
}

// New returns a compositor with the built-in blenders.
func New(opts ...Option) *Compositor {
	c := &Compositor{
		blenders: map[Mode]Blender{
			ModeRGB:    RGBBlender{},
			ModeChroma: ChromaBlender{},
			ModeLab:    LabBlender{},
			ModeIris:   IrisBlender{},
		},
		thresholds: DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve turns adaptive into a concrete mode using the masked statistics.
// Concrete modes are returned as is.
func (c *Compositor) Resolve(src, gen, mask gocv.Mat, mode Mode) Mode {
	if mode != ModeAdaptive {
		return mode
	}
	return c.thresholds.Select(src, gen, mask)
}

// Composite blends src over gen under mask with the requested mode, falling
// back along the chain on failure. It returns the blended image and the mode
// that actually produced it. The caller closes the returned Mat.
func (c *Compositor) Composite(src, gen, mask gocv.Mat, mode Mode) (gocv.Mat, Mode, error) {
	mode = c.Resolve(src, gen, mask, mode)

	var lastErr error
	for _, m := range FallbackChain(mode) {
		b, ok := c.blenders[m]
		if !ok {
			continue
		}

		out, err := blend(b, src, gen, mask)
		if err == nil && (out.Empty() || !images.SameSize(out, src) || out.Type() != gocv.MatTypeCV8UC3) {
			err = errors.Errorf("blender returned a %dx%d image of type %v", out.Cols(), out.Rows(), out.Type())
		}
		if err != nil {
			out.Close()
			lastErr = err
			logger.Warning("blend failed, falling back",
				logger.LoggerOptions{Key: "mode", Data: m.String()},
				logger.LoggerOptions{Key: "error", Data: err.Error()},
			)
			continue
		}

		return out, m, nil
	}

	if lastErr == nil {
		return gocv.NewMat(), "", errors.Wrapf(ErrAllBlendersFailed, "no blender for %s", mode)
	}
	return gocv.NewMat(), "", errors.Wrapf(ErrAllBlendersFailed, "%s: %v", mode, lastErr)
}

// blend runs one blender, converting a panic into an error.
func blend(b Blender, src, gen, mask gocv.Mat) (out gocv.Mat, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = gocv.NewMat()
			err = errors.Errorf("blender panicked: %v", r)
		}
	}()
	return b.Blend(src, gen, mask)
}
