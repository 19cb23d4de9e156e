package mask

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/nvr-ai/go-eyes/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func discMask(rows, cols, radius int) gocv.Mat {
	m := images.NewMask(rows, cols)
	gocv.Circle(&m, image.Pt(cols/2, rows/2), radius, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	return m
}

func TestKernelSize(t *testing.T) {
	tests := []struct {
		radius int
		want   int
	}{
		{radius: 1, want: 1},
		{radius: 2, want: 3},
		{radius: 3, want: 3},
		{radius: 18, want: 19},
		{radius: 25, want: 25},
	}

	for _, tt := range tests {
		got := KernelSize(tt.radius)
		assert.Equal(t, tt.want, got, "radius %d", tt.radius)
		assert.Equal(t, 1, got%2, "kernel must be odd")
	}
}

func TestRefineZeroRadiusIsCopy(t *testing.T) {
	raw := discMask(64, 64, 10)
	defer raw.Close()
	src := images.NewFilled(64, 64, 100, 100, 100)
	defer src.Close()

	out := Refine(raw, src, 0)
	defer out.Close()

	assert.Equal(t, images.ComputeMatChecksum(raw), images.ComputeMatChecksum(out))
}

func TestRefineFlatSourceEqualsBlur(t *testing.T) {
	raw := discMask(96, 96, 20)
	defer raw.Close()
	src := images.NewFilled(96, 96, 90, 120, 200)
	defer src.Close()

	out := Refine(raw, src, 6)
	defer out.Close()
	blurred := Blur(raw, 6)
	defer blurred.Close()

	// A flat source has no edges so the factor is 1 everywhere.
	assert.Equal(t, images.ComputeMatChecksum(blurred), images.ComputeMatChecksum(out))
	assert.Greater(t, out.GetUCharAt(48, 48), uint8(200))
}

func TestRefineSuppressesAtSourceEdges(t *testing.T) {
	raw := discMask(80, 80, 30)
	defer raw.Close()

	// Hard vertical luminance edge through the middle of the disc.
	src := images.NewFilled(80, 80, 0, 0, 0)
	defer src.Close()
	gocv.Rectangle(&src, image.Rect(40, 0, 80, 80), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	out := Refine(raw, src, 4)
	defer out.Close()

	assert.Less(t, out.GetUCharAt(40, 40), uint8(10))
	assert.Greater(t, out.GetUCharAt(40, 25), uint8(200))
}

func TestRefineBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 5; i++ {
		rows, cols := 40+rng.Intn(40), 40+rng.Intn(40)
		data := make([]byte, rows*cols)
		rng.Read(data)
		raw, err := images.MatFromBytes(rows, cols, gocv.MatTypeCV8UC1, data)
		require.NoError(t, err)

		srcData := make([]byte, rows*cols*3)
		rng.Read(srcData)
		src, err := images.MatFromBytes(rows, cols, gocv.MatTypeCV8UC3, srcData)
		require.NoError(t, err)

		out := Refine(raw, src, rng.Intn(20))
		assert.Equal(t, rows, out.Rows())
		assert.Equal(t, cols, out.Cols())
		assert.Equal(t, gocv.MatTypeCV8UC1, out.Type())

		// 8-bit storage bounds the mask; the alpha derived from it is in [0, 1].
		for _, v := range out.ToBytes() {
			alpha := float64(v) / 255
			assert.True(t, alpha >= 0 && alpha <= 1)
		}

		out.Close()
		src.Close()
		raw.Close()
	}
}

func TestRefineFallsBackToBlurOnMismatchedSource(t *testing.T) {
	raw := discMask(50, 50, 10)
	defer raw.Close()
	src := images.NewFilled(20, 30, 10, 10, 10)
	defer src.Close()

	out := Refine(raw, src, 5)
	defer out.Close()
	blurred := Blur(raw, 5)
	defer blurred.Close()

	assert.Equal(t, images.ComputeMatChecksum(blurred), images.ComputeMatChecksum(out))
}
