package facemesh

import (
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// YuNet detection thresholds.
const (
	YuNetScoreThreshold = 0.7
	YuNetNMSThreshold   = 0.3
	YuNetTopK           = 50
)

// YuNetLocator finds faces with OpenCV's FaceDetectorYN and returns the
// highest scoring one. The detector keeps its input size as state, so Locate
// is serialised.
type YuNetLocator struct {
	mu       sync.Mutex
	detector gocv.FaceDetectorYN
}

// NewYuNetLocator loads a YuNet ONNX model.
func NewYuNetLocator(modelPath string) (*YuNetLocator, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Wrap(err, "face detector model")
	}

	d := gocv.NewFaceDetectorYN(modelPath, "", image.Pt(320, 320))
	d.SetScoreThreshold(YuNetScoreThreshold)
	d.SetNMSThreshold(YuNetNMSThreshold)
	d.SetTopK(YuNetTopK)

	return &YuNetLocator{detector: d}, nil
}

// Locate implements FaceLocator.
func (l *YuNetLocator) Locate(src gocv.Mat) (image.Rectangle, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.detector.SetInputSize(image.Pt(src.Cols(), src.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	l.detector.Detect(src, &faces)

	bounds := image.Rect(0, 0, src.Cols(), src.Rows())
	best, found := image.Rectangle{}, false
	var bestScore float32
	// Row layout: x, y, w, h, 5 landmark pairs, score.
	for i := 0; i < faces.Rows(); i++ {
		x := int(faces.GetFloatAt(i, 0))
		y := int(faces.GetFloatAt(i, 1))
		w := int(faces.GetFloatAt(i, 2))
		h := int(faces.GetFloatAt(i, 3))
		score := faces.GetFloatAt(i, 14)

		box := image.Rect(x, y, x+w, y+h).Intersect(bounds)
		if box.Empty() || score <= bestScore {
			continue
		}
		best, bestScore, found = box, score, true
	}
	return best, found, nil
}

// Close releases the detector.
func (l *YuNetLocator) Close() {
	l.detector.Close()
}
