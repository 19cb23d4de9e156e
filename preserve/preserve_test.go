package preserve_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/nvr-ai/go-eyes/compositor"
	"github.com/nvr-ai/go-eyes/config"
	"github.com/nvr-ai/go-eyes/detector"
	"github.com/nvr-ai/go-eyes/images"
	"github.com/nvr-ai/go-eyes/preserve"
	"github.com/nvr-ai/go-eyes/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func cascadeOnly(boxes ...image.Rectangle) (*preserve.Preserver, *test.CountingRectDetector) {
	rects := &test.CountingRectDetector{Boxes: boxes}
	return preserve.New(detector.New(detector.NewBasicCascadeStrategy(rects)), compositor.New()), rects
}

func TestUniformImageIsNoOp(t *testing.T) {
	gen := test.NewMockFaceGenerator(128, 128)
	src := gen.Uniform(test.Skin)
	defer src.Close()
	generated := gen.Uniform([3]uint8{60, 90, 200})
	defer generated.Close()

	p, rects := cascadeOnly()
	for _, mode := range compositor.Modes {
		res, err := p.Preserve(src, generated, 18, mode)
		require.NoError(t, err)

		assert.False(t, res.Applied)
		assert.Empty(t, res.Mode)
		assert.Equal(t, images.ComputeMatChecksum(generated), images.ComputeMatChecksum(res.Image), "mode %s", mode)
		res.Image.Close()
	}
	assert.Equal(t, int64(len(compositor.Modes)), rects.Calls())
}

func TestOutputKeepsSourceResolution(t *testing.T) {
	gen := test.NewMockFaceGenerator(320, 240)
	src := gen.Face(test.DarkBlue)
	defer src.Close()

	small := test.NewMockFaceGenerator(160, 100).Face(test.Brown)
	defer small.Close()

	t.Run("eyes found", func(t *testing.T) {
		p, _ := cascadeOnly(gen.EyeBoxes()...)
		res, err := p.Preserve(src, small, 6, compositor.ModeAdaptive)
		require.NoError(t, err)
		defer res.Image.Close()

		assert.True(t, res.Applied)
		assert.Equal(t, "basic-cascade", res.Strategy)
		assert.Equal(t, 240, res.Image.Rows())
		assert.Equal(t, 320, res.Image.Cols())
	})

	t.Run("nothing found", func(t *testing.T) {
		p, _ := cascadeOnly()
		res, err := p.Preserve(src, small, 6, compositor.ModeRGB)
		require.NoError(t, err)
		defer res.Image.Close()

		assert.False(t, res.Applied)
		assert.Equal(t, 240, res.Image.Rows())
		assert.Equal(t, 320, res.Image.Cols())
	})
}

func TestInvalidInput(t *testing.T) {
	good := images.NewFilled(32, 32, 1, 2, 3)
	defer good.Close()
	empty := gocv.NewMat()
	defer empty.Close()
	gray := images.NewMask(32, 32)
	defer gray.Close()

	p, rects := cascadeOnly()

	for name, tc := range map[string]struct{ src, gen gocv.Mat }{
		"empty source":    {src: empty, gen: good},
		"empty generated": {src: good, gen: empty},
		"single channel":  {src: gray, gen: good},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Preserve(tc.src, tc.gen, 18, compositor.ModeRGB)
			assert.ErrorIs(t, err, preserve.ErrInvalidInput)
		})
	}

	_, err := p.Preserve(good, good, -1, compositor.ModeRGB)
	assert.ErrorIs(t, err, preserve.ErrInvalidInput)

	_, err = p.Preserve(good, good, 1, compositor.Mode("sepia"))
	assert.ErrorIs(t, err, compositor.ErrUnknownMode)

	assert.Zero(t, rects.Calls())
}

func TestPreserveEyeColorsNeverFails(t *testing.T) {
	gen := images.NewFilled(32, 48, 9, 8, 7)
	defer gen.Close()
	gray := images.NewMask(16, 16)
	defer gray.Close()

	p, _ := cascadeOnly()
	out := p.PreserveEyeColors(gray, gen, 18, compositor.ModeRGB)
	defer out.Close()

	assert.Equal(t, 16, out.Rows())
	assert.Equal(t, 16, out.Cols())
}

func TestDisabledIsPassthrough(t *testing.T) {
	gen := test.NewMockFaceGenerator(96, 96)
	src := gen.Face(test.DarkBlue)
	defer src.Close()
	generated := gen.Face(test.Brown)
	defer generated.Close()

	p, rects := cascadeOnly(gen.EyeBoxes()...)
	p.Enabled = false

	res, err := p.Preserve(src, generated, 18, compositor.ModeRGB)
	require.NoError(t, err)
	defer res.Image.Close()

	assert.False(t, res.Applied)
	assert.Zero(t, rects.Calls())
	assert.Equal(t, images.ComputeMatChecksum(generated), images.ComputeMatChecksum(res.Image))
}

func TestCompositorFailureIsPassthrough(t *testing.T) {
	gen := test.NewMockFaceGenerator(96, 96)
	src := gen.Face(test.DarkBlue)
	defer src.Close()
	generated := gen.Face(test.Brown)
	defer generated.Close()

	broken := compositor.BlenderFunc(func(src, gen, mask gocv.Mat) (gocv.Mat, error) {
		panic("out of memory")
	})
	c := compositor.New(
		compositor.WithBlender(compositor.ModeChroma, broken),
		compositor.WithBlender(compositor.ModeRGB, broken),
	)
	p := preserve.New(detector.New(detector.NewBasicCascadeStrategy(&test.CountingRectDetector{Boxes: gen.EyeBoxes()})), c)

	res, err := p.Preserve(src, generated, 4, compositor.ModeChroma)
	require.NoError(t, err)
	defer res.Image.Close()

	assert.False(t, res.Applied)
	assert.Equal(t, "basic-cascade", res.Strategy)
	assert.Equal(t, images.ComputeMatChecksum(generated), images.ComputeMatChecksum(res.Image))
}

func TestTimingsRecorded(t *testing.T) {
	gen := test.NewMockFaceGenerator(96, 96)
	src := gen.Face(test.DarkBlue)
	defer src.Close()
	generated := gen.Face(test.Brown)
	defer generated.Close()

	p, _ := cascadeOnly(gen.EyeBoxes()...)
	res, err := p.Preserve(src, generated, 4, compositor.ModeLab)
	require.NoError(t, err)
	defer res.Image.Close()

	assert.Equal(t, compositor.ModeLab, res.Mode)
	assert.Equal(t,
		[]string{preserve.StageResize, preserve.StageDetect, preserve.StageRefine, preserve.StageComposite},
		res.Timings.Stages())
}

func TestPreserveImages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 30))
	generated := image.NewRGBA(image.Rect(0, 0, 20, 15))
	for i := range generated.Pix {
		generated.Pix[i] = 200
	}

	p, _ := cascadeOnly()
	out, res, err := p.PreserveImages(src, generated, 18, compositor.ModeAdaptive)
	require.NoError(t, err)

	assert.False(t, res.Applied)
	assert.Equal(t, image.Rect(0, 0, 40, 30), out.Bounds())
	assert.Equal(t, color.RGBA{R: 200, G: 200, B: 200, A: 255}, out.RGBAAt(20, 15))

	_, _, err = p.PreserveImages(nil, generated, 18, compositor.ModeAdaptive)
	assert.ErrorIs(t, err, preserve.ErrInvalidInput)
}

func TestNewFromConfigWithoutDetectors(t *testing.T) {
	cfg := config.Default()
	cfg.CascadeDir = t.TempDir()

	p, closeFn, err := preserve.NewFromConfig(cfg)
	defer closeFn()
	if err != nil {
		// No OpenCV cascades installed on this machine.
		assert.ErrorIs(t, err, detector.ErrNoCascades)
		return
	}
	assert.True(t, p.Enabled)
	assert.Contains(t, p.Detector.Strategies(), "basic-cascade")
}

func TestRegionSourceMatchesClone(t *testing.T) {
	faces := test.NewMockFaceGenerator(128, 128)
	face := faces.Face(test.DarkBlue)
	defer face.Close()
	generated := faces.Face(test.Brown)
	defer generated.Close()

	// The face sits in the right half of a wider frame so the region view
	// has a row stride twice its width.
	big := images.NewFilled(128, 256, 10, 200, 30)
	defer big.Close()
	r := image.Rect(128, 0, 256, 128)
	dst := big.Region(r)
	face.CopyTo(&dst)
	dst.Close()

	view := big.Region(r)
	defer view.Close()
	require.False(t, view.IsContinuous())
	dense := view.Clone()
	defer dense.Close()

	for _, mode := range compositor.Modes {
		p, _ := cascadeOnly(faces.EyeBoxes()...)

		fromView, err := p.Preserve(view, generated, 6, mode)
		require.NoError(t, err)
		fromDense, err := p.Preserve(dense, generated, 6, mode)
		require.NoError(t, err)

		assert.True(t, fromView.Applied, "mode %s", mode)
		assert.Equal(t, fromDense.Mode, fromView.Mode)
		assert.Equal(t, images.ComputeMatChecksum(fromDense.Image), images.ComputeMatChecksum(fromView.Image), "mode %s", mode)
		for _, e := range faces.Eyes() {
			assert.Equal(t, test.PixelAt(fromDense.Image, e.Center), test.PixelAt(fromView.Image, e.Center))
		}

		fromView.Image.Close()
		fromDense.Image.Close()
	}
}
