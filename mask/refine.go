// Package mask - Turns a raw binary eye mask into a soft, edge-aware alpha mask.
//
// Plain feathering bleeds skin and eyebrow colour across the eyelid. The
// refiner blurs the mask and then suppresses it wherever the source has a
// strong luminance edge, so the transition stays tight at anatomical edges.
package mask

import (
	"image"

	"github.com/nvr-ai/go-eyes/images"
	"github.com/nvr-ai/go-eyes/logger"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// KernelSize returns the odd Gaussian kernel size used for a feather radius.
func KernelSize(radius int) int {
	return 2*(radius/2) + 1
}

// Refine returns the alpha mask for raw. A radius of 0 returns a copy of raw.
// If the edge-aware step fails the plain blurred mask is returned instead.
// The caller closes the returned Mat.
func Refine(raw, src gocv.Mat, radius int) gocv.Mat {
	if radius <= 0 {
		return raw.Clone()
	}

	blurred := Blur(raw, radius)

	refined, err := suppressEdges(blurred, src)
	if err != nil {
		logger.Warning("edge-aware refinement failed, using plain blur",
			logger.LoggerOptions{Key: "error", Data: err.Error()},
		)
		return blurred
	}

	blurred.Close()
	return refined
}

// Blur feathers the mask with a Gaussian of sigma radius.
func Blur(raw gocv.Mat, radius int) gocv.Mat {
	k := KernelSize(radius)
	blurred := gocv.NewMat()
	gocv.GaussianBlur(raw, &blurred, image.Pt(k, k), float64(radius), float64(radius), gocv.BorderDefault)
	return blurred
}

// EdgeMap returns the dilated Sobel gradient magnitude of the source
// luminance, saturated to 8 bit.
func EdgeMap(src gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	gradX := gocv.NewMat()
	defer gradX.Close()
	gradY := gocv.NewMat()
	defer gradY.Close()
	gocv.Sobel(gray, &gradX, gocv.MatTypeCV64F, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gradY, gocv.MatTypeCV64F, 0, 1, 3, 1, 0, gocv.BorderDefault)

	magnitude := gocv.NewMat()
	defer magnitude.Close()
	gocv.Magnitude(gradX, gradY, &magnitude)

	edges := gocv.NewMat()
	defer edges.Close()
	magnitude.ConvertTo(&edges, gocv.MatTypeCV8U)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	dilated := gocv.NewMat()
	gocv.Dilate(edges, &dilated, kernel)
	return dilated
}

func suppressEdges(blurred, src gocv.Mat) (out gocv.Mat, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("edge suppression panicked: %v", r)
		}
	}()

	if !images.SameSize(blurred, src) {
		return gocv.NewMat(), errors.Errorf("mask %dx%d does not match source %dx%d",
			blurred.Cols(), blurred.Rows(), src.Cols(), src.Rows())
	}

	edges := EdgeMap(src)
	defer edges.Close()

	m := blurred.ToBytes()
	e := edges.ToBytes()
	if len(m) != len(e) {
		return gocv.NewMat(), errors.Errorf("mask has %d bytes, edge map %d", len(m), len(e))
	}

	// final = blurred * (255 - edge) / 255, rounded; stays within [0, 255].
	data := make([]byte, len(m))
	for i := range m {
		data[i] = uint8((int(m[i])*(255-int(e[i])) + 127) / 255)
	}

	return images.MatFromBytes(blurred.Rows(), blurred.Cols(), gocv.MatTypeCV8UC1, data)
}
