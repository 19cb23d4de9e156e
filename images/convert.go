package images

import (
	"image"
	"runtime"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned when a conversion receives a nil image or an empty Mat.
var ErrEmptyImage = errors.New("empty image")

// MatFromBytes builds a Mat that owns a copy of data.
//
// gocv.NewMatFromBytes wraps the Go slice without copying, so the view is
// cloned before the slice can be collected.
func MatFromBytes(rows, cols int, mt gocv.MatType, data []byte) (gocv.Mat, error) {
	view, err := gocv.NewMatFromBytes(rows, cols, mt, data)
	if err != nil {
		return gocv.NewMat(), errors.Wrapf(err, "mat from %d bytes (%dx%d)", len(data), cols, rows)
	}
	defer view.Close()

	owned := view.Clone()
	runtime.KeepAlive(data)
	return owned, nil
}

// NewMask returns a zeroed single channel 8-bit mask.
func NewMask(rows, cols int) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	m.SetTo(gocv.NewScalar(0, 0, 0, 0))
	return m
}

// NewFilled returns a 3 channel 8-bit Mat filled with one BGR colour.
func NewFilled(rows, cols int, b, g, r uint8) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(float64(b), float64(g), float64(r), 0))
	return m
}

// ToMat converts an image.Image into a BGR CV8UC3 Mat.
//
// Alpha is dropped; pixels are read through the colour model so any decoded
// image (paletted, YCbCr, NRGBA...) is accepted.
func ToMat(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.NewMat(), ErrEmptyImage
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return gocv.NewMat(), ErrEmptyImage
	}

	data := make([]byte, 0, width*height*3)
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < height; y++ {
			row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+width*4]
			for x := 0; x < width*4; x += 4 {
				data = append(data, row[x+2], row[x+1], row[x])
			}
		}
	} else {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				data = append(data, uint8(b>>8), uint8(g>>8), uint8(r>>8))
			}
		}
	}

	return MatFromBytes(height, width, gocv.MatTypeCV8UC3, data)
}

// ToImage converts a BGR CV8UC3 Mat into an opaque *image.RGBA.
func ToImage(mat gocv.Mat) (*image.RGBA, error) {
	if mat.Empty() {
		return nil, ErrEmptyImage
	}
	if mat.Type() != gocv.MatTypeCV8UC3 {
		return nil, errors.Errorf("expected CV8UC3 mat, got type %v", mat.Type())
	}

	if !mat.IsContinuous() {
		mat = mat.Clone()
		defer mat.Close()
	}

	width, height := mat.Cols(), mat.Rows()
	data := mat.ToBytes()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < len(data); i, j = i+3, j+4 {
		img.Pix[j] = data[i+2]
		img.Pix[j+1] = data[i+1]
		img.Pix[j+2] = data[i]
		img.Pix[j+3] = 0xff
	}

	return img, nil
}
