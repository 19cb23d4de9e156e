package inference

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestPrepareInputLayouts(t *testing.T) {
	img := solid(4, 2, color.RGBA{R: 255, G: 51, B: 0, A: 255})

	t.Run("nchw", func(t *testing.T) {
		dst := make([]float32, 4*2*3)
		require.NoError(t, PrepareInput(img, 4, 2, NCHW, dst))
		assert.InDelta(t, 1.0, dst[0], 1e-6)
		assert.InDelta(t, 0.2, dst[8], 1e-6)
		assert.InDelta(t, 0.0, dst[16], 1e-6)
	})

	t.Run("nhwc", func(t *testing.T) {
		dst := make([]float32, 4*2*3)
		require.NoError(t, PrepareInput(img, 4, 2, NHWC, dst))
		assert.InDelta(t, 1.0, dst[0], 1e-6)
		assert.InDelta(t, 0.2, dst[1], 1e-6)
		assert.InDelta(t, 0.0, dst[2], 1e-6)
	})
}

func TestPrepareInputResizes(t *testing.T) {
	img := solid(64, 48, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	dst := make([]float32, 16*16*3)

	require.NoError(t, PrepareInput(img, 16, 16, NCHW, dst))
	assert.InDelta(t, 10.0/255, dst[16*16/2], 1e-2)
}

func TestPrepareInputRejectsSmallTensor(t *testing.T) {
	img := solid(2, 2, color.RGBA{A: 255})
	assert.Error(t, PrepareInput(img, 2, 2, NCHW, make([]float32, 5)))
}

func TestDefaultSharedLibPath(t *testing.T) {
	assert.NotEmpty(t, DefaultSharedLibPath())
}
