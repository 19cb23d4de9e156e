// Package facemesh - 468 point face landmark estimation on onnxruntime.
//
// The estimator finds a face box (YuNet through OpenCV when a detector model
// is configured, otherwise the whole frame), crops a square around it, runs
// the face mesh model on the crop and maps the landmarks back to source
// pixels. It implements detector.LandmarkEstimator.
package facemesh

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-eyes/detector"
	"github.com/nvr-ai/go-eyes/images"
	"github.com/nvr-ai/go-eyes/inference"
	"github.com/nvr-ai/go-eyes/logger"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// Model geometry.
const (
	InputSize = 192
	// CropScale enlarges the face box before cropping so the whole mesh fits.
	CropScale = 1.5
	// ValuesPerPoint is x, y, z.
	ValuesPerPoint = 3
	// FacePresenceThreshold is the minimum sigmoid of the face flag output
	// for the landmarks to be trusted.
	FacePresenceThreshold = 0.5
)

// Config locates the model files.
type Config struct {
	ModelPath string
	// FaceDetectorModelPath is an optional YuNet ONNX model.
	FaceDetectorModelPath string
	// OnnxRuntimeLibPath overrides the onnxruntime library location.
	OnnxRuntimeLibPath string
	InputName          string
	OutputName         string
	// FaceFlagName is the 1x1x1x1 face presence logit.
	FaceFlagName string
	Layout       inference.Layout
}

// DefaultConfig returns the tensor names of the common face_landmark.onnx export.
func DefaultConfig(modelPath string) Config {
	return Config{
		ModelPath:  modelPath,
		InputName:  "input_1",
		OutputName:   "conv2d_21",
		FaceFlagName: "conv2d_31",
		Layout:       inference.NHWC,
	}
}

// FaceLocator finds the most prominent face box.
type FaceLocator interface {
	Locate(src gocv.Mat) (image.Rectangle, bool, error)
}

// FullFrame treats the whole image as the face.
type FullFrame struct{}

// Locate implements FaceLocator.
func (FullFrame) Locate(src gocv.Mat) (image.Rectangle, bool, error) {
	return image.Rect(0, 0, src.Cols(), src.Rows()), true, nil
}

// Runner runs the model once. Outputs are the landmarks followed by the
// face flag. *inference.Session implements it.
type Runner interface {
	Run(fill func(input []float32) error, read func(outputs [][]float32) error) error
	Close()
}

// Estimator runs the face mesh model.
type Estimator struct {
	session Runner
	locator FaceLocator
	layout  inference.Layout
}

// New loads the model. The face detector is optional; without it the whole
// frame is fed to the mesh model.
func New(cfg Config) (*Estimator, error) {
	if cfg.FaceFlagName == "" {
		return nil, errors.New("face mesh config needs the face flag output")
	}
	if err := inference.InitializeRuntime(cfg.OnnxRuntimeLibPath); err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(1, InputSize, InputSize, 3)
	if cfg.Layout == inference.NCHW {
		inputShape = ort.NewShape(1, 3, InputSize, InputSize)
	}

	session, err := inference.NewSession(inference.SessionConfig{
		ModelPath:  cfg.ModelPath,
		InputName:  cfg.InputName,
		InputShape: inputShape,
		Outputs: []inference.Output{
			{Name: cfg.OutputName, Shape: ort.NewShape(1, 1, 1, detector.FaceMeshPoints*ValuesPerPoint)},
			{Name: cfg.FaceFlagName, Shape: ort.NewShape(1, 1, 1, 1)},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "face mesh session")
	}

	var locator FaceLocator = FullFrame{}
	if cfg.FaceDetectorModelPath != "" {
		yunet, err := NewYuNetLocator(cfg.FaceDetectorModelPath)
		if err != nil {
			logger.Warning("face detector unavailable, using the full frame",
				logger.LoggerOptions{Key: "error", Data: err.Error()},
			)
		} else {
			locator = yunet
		}
	}

	return NewWithSession(session, locator, cfg.Layout), nil
}

// NewWithSession wires an existing runner and locator.
func NewWithSession(session Runner, locator FaceLocator, layout inference.Layout) *Estimator {
	if locator == nil {
		locator = FullFrame{}
	}
	return &Estimator{session: session, locator: locator, layout: layout}
}

// Estimate implements detector.LandmarkEstimator.
func (e *Estimator) Estimate(src gocv.Mat) (detector.Face, bool, error) {
	face, ok, err := e.locator.Locate(src)
	if err != nil || !ok {
		return detector.Face{}, false, err
	}

	crop := CropBox(face, image.Rect(0, 0, src.Cols(), src.Rows()), CropScale)
	if crop.Empty() {
		return detector.Face{}, false, nil
	}

	region := src.Region(crop)
	patch := region.Clone()
	region.Close()
	defer patch.Close()

	img, err := images.ToImage(patch)
	if err != nil {
		return detector.Face{}, false, errors.Wrap(err, "face crop")
	}

	var (
		landmarks []detector.Landmark
		score     float32
	)
	err = e.session.Run(
		func(input []float32) error {
			return inference.PrepareInput(img, InputSize, InputSize, e.layout, input)
		},
		func(outputs [][]float32) error {
			if len(outputs) < 2 || len(outputs[1]) == 0 {
				return errors.Errorf("face mesh returned %d outputs, need landmarks and face flag", len(outputs))
			}
			score = FaceScore(outputs[1][0])
			if score < FacePresenceThreshold {
				return nil
			}
			var derr error
			landmarks, derr = Decode(outputs[0], crop, InputSize)
			return derr
		},
	)
	if err != nil {
		return detector.Face{}, false, err
	}
	if score < FacePresenceThreshold {
		logger.Debug("face mesh found no face", logger.LoggerOptions{Key: "score", Data: score})
		return detector.Face{}, false, nil
	}
	return detector.Face{Landmarks: landmarks}, true, nil
}

// Close releases the session and the face detector.
func (e *Estimator) Close() {
	if c, ok := e.locator.(interface{ Close() }); ok {
		c.Close()
	}
	if e.session != nil {
		e.session.Close()
	}
}

// FaceScore maps the face flag logit to a probability.
func FaceScore(logit float32) float32 {
	return 1 / (1 + math32.Exp(-logit))
}

// CropBox squares face around its centre, scales it and clips it to bounds.
func CropBox(face, bounds image.Rectangle, scale float32) image.Rectangle {
	cx := float32(face.Min.X+face.Max.X) / 2
	cy := float32(face.Min.Y+face.Max.Y) / 2
	half := math32.Max(float32(face.Dx()), float32(face.Dy())) * scale / 2

	box := image.Rect(
		int(math32.Floor(cx-half)), int(math32.Floor(cy-half)),
		int(math32.Ceil(cx+half)), int(math32.Ceil(cy+half)),
	)
	return box.Intersect(bounds)
}

// Decode maps model output in input-pixel units back to source pixels inside
// crop. Z is scaled like X.
func Decode(output []float32, crop image.Rectangle, inputSize int) ([]detector.Landmark, error) {
	need := detector.FaceMeshPoints * ValuesPerPoint
	if len(output) < need {
		return nil, errors.Errorf("face mesh output has %d values, need %d", len(output), need)
	}

	sx := float32(crop.Dx()) / float32(inputSize)
	sy := float32(crop.Dy()) / float32(inputSize)

	points := make([]detector.Landmark, detector.FaceMeshPoints)
	for i := range points {
		x, y, z := output[3*i], output[3*i+1], output[3*i+2]
		if math32.IsNaN(x) || math32.IsNaN(y) {
			return nil, errors.Errorf("face mesh point %d is NaN", i)
		}
		points[i] = detector.Landmark{
			X: float32(crop.Min.X) + x*sx,
			Y: float32(crop.Min.Y) + y*sy,
			Z: z * sx,
		}
	}
	return points, nil
}
