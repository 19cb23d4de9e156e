package inference

import (
	"image"

	"github.com/nvr-ai/go-eyes/images"
	"github.com/pkg/errors"
)

// Layout is the memory order of an image tensor.
type Layout int

const (
	// NCHW stores the three colour planes one after another.
	NCHW Layout = iota
	// NHWC interleaves the channels per pixel.
	NHWC
)

// PrepareInput resizes img to width x height (bilinear) and writes it as RGB
// floats in [0, 1] into dst using the given layout.
//
// Arguments:
//   - img: The image to prepare.
//   - width, height: The model input size.
//   - layout: The tensor memory order.
//   - dst: The destination tensor data.
//
// Returns:
//   - error: An error if dst is too small.
func PrepareInput(img image.Image, width, height int, layout Layout, dst []float32) error {
	channelSize := width * height
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d", len(dst), channelSize*3)
	}

	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		resized, err := images.ResizeImage(img, width, height)
		if err != nil {
			return errors.Wrap(err, "resize model input")
		}
		img = resized
		b = img.Bounds()
	}

	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			rf, gf, bf := float32(r>>8)/255.0, float32(g>>8)/255.0, float32(bl>>8)/255.0
			if layout == NHWC {
				dst[3*i], dst[3*i+1], dst[3*i+2] = rf, gf, bf
			} else {
				dst[i], dst[channelSize+i], dst[2*channelSize+i] = rf, gf, bf
			}
			i++
		}
	}
	return nil
}
