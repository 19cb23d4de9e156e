package compositor

import (
	"image"
	"image/color"
	"math"

	"github.com/nvr-ai/go-eyes/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Blender composites src over gen weighted by mask/255. src and gen are BGR
// CV8UC3 of equal size, mask is CV8UC1 of the same size. The caller closes
// the returned Mat.
type Blender interface {
	Blend(src, gen, mask gocv.Mat) (gocv.Mat, error)
}

// BlenderFunc adapts a function to Blender.
type BlenderFunc func(src, gen, mask gocv.Mat) (gocv.Mat, error)

// Blend implements Blender.
func (f BlenderFunc) Blend(src, gen, mask gocv.Mat) (gocv.Mat, error) {
	return f(src, gen, mask)
}

// Per-channel alpha scales for the chroma blend, in HSV channel order.
const (
	ChromaHueScale        = 1.0
	ChromaSaturationScale = 0.9
	ChromaValueScale      = 0.7
)

// Iris blend constants.
const (
	// IrisEllipseScale sizes the iris ellipse semi-axes from each contour box.
	IrisEllipseScale = 0.3
	// IrisStrength is the alpha inside the iris ellipse.
	IrisStrength = 0.9
	// IrisSurroundScale scales the eye alpha outside the iris.
	IrisSurroundScale = 0.6
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// RGBBlender blends every channel linearly.
type RGBBlender struct{}

// Blend implements Blender.
func (RGBBlender) Blend(src, gen, mask gocv.Mat) (gocv.Mat, error) {
	if err := checkInputs(src, gen, mask); err != nil {
		return gocv.NewMat(), err
	}
	out := mixChannels(src.ToBytes(), gen.ToBytes(), alphas(mask), [3]float64{1, 1, 1})
	return images.MatFromBytes(src.Rows(), src.Cols(), gocv.MatTypeCV8UC3, out)
}

// ChromaBlender blends in HSV: hue at full alpha, saturation and value damped.
type ChromaBlender struct{}

// Blend implements Blender.
func (ChromaBlender) Blend(src, gen, mask gocv.Mat) (gocv.Mat, error) {
	if err := checkInputs(src, gen, mask); err != nil {
		return gocv.NewMat(), err
	}
	scales := [3]float64{ChromaHueScale, ChromaSaturationScale, ChromaValueScale}
	return blendIn(src, gen, alphas(mask), scales, gocv.ColorBGRToHSV, gocv.ColorHSVToBGR)
}

// LabBlender blends uniformly in L*a*b*.
type LabBlender struct{}

// Blend implements Blender.
func (LabBlender) Blend(src, gen, mask gocv.Mat) (gocv.Mat, error) {
	if err := checkInputs(src, gen, mask); err != nil {
		return gocv.NewMat(), err
	}
	return blendIn(src, gen, alphas(mask), [3]float64{1, 1, 1}, gocv.ColorBGRToLab, gocv.ColorLabToBGR)
}

// IrisBlender concentrates the blend on an ellipse inside each eye blob and
// blends in L*a*b*.
type IrisBlender struct{}

// Blend implements Blender.
func (IrisBlender) Blend(src, gen, mask gocv.Mat) (gocv.Mat, error) {
	if err := checkInputs(src, gen, mask); err != nil {
		return gocv.NewMat(), err
	}

	iris := IrisMask(mask)
	defer iris.Close()

	eye := alphas(mask)
	in := iris.ToBytes()
	if len(in) != len(eye) {
		return gocv.NewMat(), errors.Errorf("iris mask has %d pixels, eye mask %d", len(in), len(eye))
	}

	enhanced := make([]float64, len(eye))
	for i, a := range eye {
		w := float64(in[i]) / 255
		enhanced[i] = w*IrisStrength + a*(1-w)*IrisSurroundScale
	}
	return blendIn(src, gen, enhanced, [3]float64{1, 1, 1}, gocv.ColorBGRToLab, gocv.ColorLabToBGR)
}

// IrisMask paints, for every external contour of the non-zero mask region, a
// filled ellipse centred on the contour's bounding box with semi-axes of
// IrisEllipseScale times the box width and height.
func IrisMask(mask gocv.Mat) gocv.Mat {
	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(mask, &binary, 0, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	iris := images.NewMask(mask.Rows(), mask.Cols())
	for i := 0; i < contours.Size(); i++ {
		box := gocv.BoundingRect(contours.At(i))
		center := image.Pt(box.Min.X+box.Dx()/2, box.Min.Y+box.Dy()/2)
		axes := image.Pt(
			max(1, int(float64(box.Dx())*IrisEllipseScale)),
			max(1, int(float64(box.Dy())*IrisEllipseScale)),
		)
		gocv.Ellipse(&iris, center, axes, 0, 0, 360, white, -1)
	}
	return iris
}

// ErrNotContinuous is returned for ROI views; clone them first.
var ErrNotContinuous = errors.New("image is not continuous")

func checkInputs(src, gen, mask gocv.Mat) error {
	switch {
	case src.Empty() || gen.Empty() || mask.Empty():
		return errors.Wrap(images.ErrEmptyImage, "blend")
	case !images.SameSize(src, gen) || !images.SameSize(src, mask):
		return errors.Errorf("blend size mismatch: src %dx%d gen %dx%d mask %dx%d",
			src.Cols(), src.Rows(), gen.Cols(), gen.Rows(), mask.Cols(), mask.Rows())
	case src.Type() != gocv.MatTypeCV8UC3 || gen.Type() != gocv.MatTypeCV8UC3:
		return errors.Errorf("blend expects CV8UC3 images, got %v and %v", src.Type(), gen.Type())
	case mask.Type() != gocv.MatTypeCV8UC1:
		return errors.Errorf("blend expects a CV8UC1 mask, got %v", mask.Type())
	case !src.IsContinuous() || !gen.IsContinuous() || !mask.IsContinuous():
		return errors.Wrap(ErrNotContinuous, "blend")
	}
	return nil
}

// alphas returns mask/255 per pixel.
func alphas(mask gocv.Mat) []float64 {
	data := mask.ToBytes()
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v) / 255
	}
	return out
}

// blendIn converts both images with to, mixes them and converts back with from.
func blendIn(src, gen gocv.Mat, alpha []float64, scales [3]float64, to, from gocv.ColorConversionCode) (gocv.Mat, error) {
	srcConv := gocv.NewMat()
	defer srcConv.Close()
	genConv := gocv.NewMat()
	defer genConv.Close()
	gocv.CvtColor(src, &srcConv, to)
	gocv.CvtColor(gen, &genConv, to)

	mixed, err := images.MatFromBytes(src.Rows(), src.Cols(), gocv.MatTypeCV8UC3,
		mixChannels(srcConv.ToBytes(), genConv.ToBytes(), alpha, scales))
	if err != nil {
		return gocv.NewMat(), err
	}
	defer mixed.Close()

	out := gocv.NewMat()
	gocv.CvtColor(mixed, &out, from)
	if out.Empty() {
		out.Close()
		return gocv.NewMat(), errors.New("colour conversion produced an empty image")
	}
	return out, nil
}

// mixChannels computes s*a + g*(1-a) per channel with a = alpha[pixel]*scale[channel].
func mixChannels(src, gen []byte, alpha []float64, scales [3]float64) []byte {
	out := make([]byte, len(src))
	for i := range out {
		a := alpha[i/3] * scales[i%3]
		out[i] = clampByte(float64(src[i])*a + float64(gen[i])*(1-a))
	}
	return out
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
