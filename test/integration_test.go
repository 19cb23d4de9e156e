package test

import (
	"image"
	"testing"

	"github.com/nvr-ai/go-eyes/compositor"
	"github.com/nvr-ai/go-eyes/detector"
	"github.com/nvr-ai/go-eyes/images"
	"github.com/nvr-ai/go-eyes/preserve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func within(t *testing.T, want, got [3]uint8, tolerance int, msgAndArgs ...interface{}) {
	t.Helper()
	for c := 0; c < 3; c++ {
		d := int(want[c]) - int(got[c])
		if d < 0 {
			d = -d
		}
		assert.LessOrEqual(t, d, tolerance, msgAndArgs...)
	}
}

// TestEndToEndRestoresBlueEyes recolours the eyes of a synthetic face and
// checks the pipeline brings the source colour back only inside the eyes.
func TestEndToEndRestoresBlueEyes(t *testing.T) {
	gen := NewMockFaceGenerator(512, 512)
	source := gen.Face(DarkBlue)
	defer source.Close()
	generated := gen.Face(Brown)
	defer generated.Close()

	estimator := &StaticLandmarkEstimator{Face: gen.FaceMesh()}
	cascade := &CountingRectDetector{Boxes: gen.EyeBoxes()}
	d := detector.New(
		detector.NewLandmarkStrategy(estimator),
		detector.NewEnhancedCascadeStrategy(cascade),
		detector.NewBasicCascadeStrategy(cascade),
	)
	p := preserve.New(d, compositor.New())

	res, err := p.Preserve(source, generated, 18, compositor.ModeRGB)
	require.NoError(t, err)
	defer res.Image.Close()

	assert.True(t, res.Applied)
	assert.Equal(t, "landmarks", res.Strategy)
	assert.Equal(t, compositor.ModeRGB, res.Mode)
	assert.Zero(t, cascade.Calls(), "cascades must not run when landmarks succeed")
	assert.Equal(t, 512, res.Image.Rows())
	assert.Equal(t, 512, res.Image.Cols())

	for _, e := range gen.Eyes() {
		within(t, DarkBlue, PixelAt(res.Image, e.Center), 3, "eye centre %v", e.Center)
	}

	background := []image.Point{
		{X: 10, Y: 10},
		{X: 500, Y: 10},
		{X: 256, Y: 204},
		{X: 256, Y: 450},
		{X: 10, Y: 500},
	}
	for _, pt := range background {
		assert.Equal(t, PixelAt(generated, pt), PixelAt(res.Image, pt), "background %v", pt)
	}
}

func TestEndToEndCascadeFallback(t *testing.T) {
	gen := NewMockFaceGenerator(512, 512)
	source := gen.Face(DarkBlue)
	defer source.Close()
	generated := gen.Face(Brown)
	defer generated.Close()

	d := detector.New(
		detector.NewLandmarkStrategy(&StaticLandmarkEstimator{}),
		detector.NewEnhancedCascadeStrategy(&CountingRectDetector{Boxes: gen.EyeBoxes()}),
	)

	out := preserve.New(d, nil).PreserveEyeColors(source, generated, 18, compositor.ModeAdaptive)
	defer out.Close()

	for _, e := range gen.Eyes() {
		assert.NotEqual(t, PixelAt(generated, e.Center), PixelAt(out, e.Center))
	}
	assert.Equal(t, PixelAt(generated, image.Pt(10, 10)), PixelAt(out, image.Pt(10, 10)))
}

func TestEndToEndNoFaceIsIdentity(t *testing.T) {
	gen := NewMockFaceGenerator(256, 256)
	source := gen.Uniform(Skin)
	defer source.Close()
	generated := gen.Uniform(Brown)
	defer generated.Close()

	d := detector.New(detector.DefaultStrategies(&StaticLandmarkEstimator{}, nil)...)
	out := preserve.New(d, nil).PreserveEyeColors(source, generated, 18, compositor.ModeAdaptive)
	defer out.Close()

	assert.Equal(t, images.ComputeMatChecksum(generated), images.ComputeMatChecksum(out))
}
