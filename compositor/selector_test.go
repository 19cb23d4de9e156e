package compositor_test

import (
	"testing"

	"github.com/nvr-ai/go-eyes/compositor"
	"github.com/nvr-ai/go-eyes/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestThresholdsDecide(t *testing.T) {
	th := compositor.DefaultThresholds()

	tests := []struct {
		name    string
		rgbDiff float64
		hueDiff float64
		want    compositor.Mode
	}{
		{name: "large jump", rgbDiff: 85, hueDiff: 0, want: compositor.ModeLab},
		{name: "large jump beats hue", rgbDiff: 81, hueDiff: 90, want: compositor.ModeLab},
		{name: "at lab threshold", rgbDiff: 80, hueDiff: 0, want: compositor.ModeIris},
		{name: "hue shift", rgbDiff: 50, hueDiff: 31, want: compositor.ModeChroma},
		{name: "at hue threshold", rgbDiff: 50, hueDiff: 30, want: compositor.ModeIris},
		{name: "moderate jump", rgbDiff: 50, hueDiff: 10, want: compositor.ModeIris},
		{name: "at iris threshold", rgbDiff: 40, hueDiff: 0, want: compositor.ModeChroma},
		{name: "small jump", rgbDiff: 10, hueDiff: 0, want: compositor.ModeChroma},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, th.Decide(tt.rgbDiff, tt.hueDiff))
		})
	}
}

func TestSelectModeBoundaries(t *testing.T) {
	// Colours are BGR.
	tests := []struct {
		name    string
		src     [3]uint8
		gen     [3]uint8
		rgbDiff float64
		want    compositor.Mode
	}{
		{name: "rgb diff 85", src: [3]uint8{100, 100, 100}, gen: [3]uint8{185, 185, 185}, rgbDiff: 85, want: compositor.ModeLab},
		// Red at 0 degrees against orange at 20 degrees: 8-bit hue 0 vs 10.
		{name: "rgb diff 50 hue diff 10", src: [3]uint8{100, 100, 200}, gen: [3]uint8{130, 170, 250}, rgbDiff: 50, want: compositor.ModeIris},
		{name: "rgb diff 10", src: [3]uint8{100, 100, 100}, gen: [3]uint8{110, 110, 110}, rgbDiff: 10, want: compositor.ModeChroma},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := images.NewFilled(16, 16, tt.src[0], tt.src[1], tt.src[2])
			defer src.Close()
			gen := images.NewFilled(16, 16, tt.gen[0], tt.gen[1], tt.gen[2])
			defer gen.Close()
			mask := images.NewMask(16, 16)
			defer mask.Close()
			mask.SetTo(gocv.NewScalar(255, 0, 0, 0))

			stats, err := compositor.DefaultThresholds().Measure(src, gen, mask)
			require.NoError(t, err)
			assert.Equal(t, 256, stats.CorePixels)
			assert.InDelta(t, tt.rgbDiff, stats.RGBDiff, 1e-9)

			assert.Equal(t, tt.want, compositor.SelectMode(src, gen, mask))
		})
	}
}

func TestSelectModeHueDiff(t *testing.T) {
	src := images.NewFilled(8, 8, 100, 100, 200)
	defer src.Close()
	gen := images.NewFilled(8, 8, 130, 170, 250)
	defer gen.Close()
	mask := images.NewMask(8, 8)
	defer mask.Close()
	mask.SetTo(gocv.NewScalar(255, 0, 0, 0))

	stats, err := compositor.DefaultThresholds().Measure(src, gen, mask)
	require.NoError(t, err)
	assert.InDelta(t, 10, stats.HueDiff, 1)
}

func TestSelectModeDefaultsToChroma(t *testing.T) {
	src := images.NewFilled(8, 8, 0, 0, 0)
	defer src.Close()
	gen := images.NewFilled(8, 8, 255, 255, 255)
	defer gen.Close()

	t.Run("no core pixels", func(t *testing.T) {
		// 128 is not above the core threshold.
		mask := images.NewMask(8, 8)
		defer mask.Close()
		mask.SetTo(gocv.NewScalar(128, 0, 0, 0))

		assert.Equal(t, compositor.ModeChroma, compositor.SelectMode(src, gen, mask))
	})

	t.Run("mismatched mask", func(t *testing.T) {
		mask := images.NewMask(4, 4)
		defer mask.Close()

		assert.Equal(t, compositor.ModeChroma, compositor.SelectMode(src, gen, mask))
	})
}

func TestResolveKeepsConcreteModes(t *testing.T) {
	src := images.NewFilled(4, 4, 0, 0, 0)
	defer src.Close()
	mask := images.NewMask(4, 4)
	defer mask.Close()

	c := compositor.New()
	assert.Equal(t, compositor.ModeIris, c.Resolve(src, src, mask, compositor.ModeIris))
	assert.Equal(t, compositor.ModeChroma, c.Resolve(src, src, mask, compositor.ModeAdaptive))

	custom := compositor.New(compositor.WithThresholds(compositor.Thresholds{Core: 0, LabRGB: -1}))
	mask.SetTo(gocv.NewScalar(1, 0, 0, 0))
	assert.Equal(t, compositor.ModeLab, custom.Resolve(src, src, mask, compositor.ModeAdaptive))
}
