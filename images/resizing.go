package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ResizeMatTo returns a bilinear resize of src to the given cols x rows size.
// When the size already matches, a clone is returned so the caller always owns
// the result.
//
// Arguments:
//   - src: The Mat to resize.
//   - size: Target size, X = cols, Y = rows.
//
// Returns:
//   - gocv.Mat: The resized Mat. Caller closes it.
//   - error: An error if the target size is invalid or OpenCV produced nothing.
func ResizeMatTo(src gocv.Mat, size image.Point) (gocv.Mat, error) {
	if size.X <= 0 || size.Y <= 0 {
		return gocv.NewMat(), errors.Errorf("invalid dimensions: width=%d, height=%d", size.X, size.Y)
	}
	if src.Cols() == size.X && src.Rows() == size.Y {
		return src.Clone(), nil
	}

	resized := gocv.NewMat()
	gocv.Resize(src, &resized, size, 0, 0, gocv.InterpolationLinear)
	if resized.Empty() {
		resized.Close()
		return gocv.NewMat(), errors.New("failed to resize image")
	}

	return resized, nil
}

// ResizeImage scales an image.Image to width x height with bilinear filtering.
// Used where a stage works on Go images rather than Mats (model preprocessing).
func ResizeImage(img image.Image, width, height int) (image.Image, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}
	return resize.Resize(uint(width), uint(height), img, resize.Bilinear), nil
}
