package detector

import (
	"image"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-eyes/logger"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrNoCascades is returned when none of the eye cascades could be loaded.
var ErrNoCascades = errors.New("no eye cascade classifiers loaded")

// RectDetector finds axis aligned boxes on a grayscale image.
type RectDetector interface {
	DetectMultiScale(gray gocv.Mat, scale float64, minNeighbors int) []image.Rectangle
}

// CascadeKind identifies one of the stock OpenCV eye cascades.
type CascadeKind int

const (
	// CascadeEye is the general eye cascade.
	CascadeEye CascadeKind = iota
	// CascadeEyeGlasses is trained on eyes behind glasses.
	CascadeEyeGlasses
	// CascadeLeftEye is the left eye 2-splits cascade.
	CascadeLeftEye
	// CascadeRightEye is the right eye 2-splits cascade.
	CascadeRightEye
)

// File returns the haar cascade file name shipped with OpenCV.
func (k CascadeKind) File() string {
	switch k {
	case CascadeEye:
		return "haarcascade_eye.xml"
	case CascadeEyeGlasses:
		return "haarcascade_eye_tree_eyeglasses.xml"
	case CascadeLeftEye:
		return "haarcascade_lefteye_2splits.xml"
	case CascadeRightEye:
		return "haarcascade_righteye_2splits.xml"
	}
	return ""
}

// AllCascades lists every kind in the order the enhanced strategy runs them.
var AllCascades = []CascadeKind{CascadeEye, CascadeEyeGlasses, CascadeLeftEye, CascadeRightEye}

// standardCascadeDirs are searched after the configured directory.
var standardCascadeDirs = []string{
	"/usr/local/share/opencv4/haarcascades",
	"/usr/share/opencv4/haarcascades",
	"/opt/homebrew/share/opencv4/haarcascades",
	"/usr/share/opencv/haarcascades",
}

// Cascade is a loaded cascade classifier. It is never mutated after loading
// and is shared read-only between concurrent calls.
type Cascade struct {
	Kind       CascadeKind
	Path       string
	classifier gocv.CascadeClassifier
}

// DetectMultiScale implements RectDetector.
func (c *Cascade) DetectMultiScale(gray gocv.Mat, scale float64, minNeighbors int) []image.Rectangle {
	return c.classifier.DetectMultiScaleWithParams(gray, scale, minNeighbors, 0, image.Point{}, image.Point{})
}

// Close releases the native classifier.
func (c *Cascade) Close() {
	c.classifier.Close()
}

// CascadeSet holds the loaded eye cascades by kind.
type CascadeSet struct {
	cascades map[CascadeKind]*Cascade
}

// LoadCascades loads every eye cascade found in dir or in the standard OpenCV
// install locations. Missing files are skipped with a warning; ErrNoCascades
// is returned only when nothing could be loaded.
func LoadCascades(dir string) (*CascadeSet, error) {
	set := &CascadeSet{cascades: make(map[CascadeKind]*Cascade)}

	dirs := standardCascadeDirs
	if dir != "" {
		dirs = append([]string{dir}, standardCascadeDirs...)
	}

	for _, kind := range AllCascades {
		c, err := loadCascade(kind, dirs)
		if err != nil {
			logger.Warning("eye cascade not available",
				logger.LoggerOptions{Key: "cascade", Data: kind.File()},
				logger.LoggerOptions{Key: "error", Data: err.Error()},
			)
			continue
		}
		set.cascades[kind] = c
	}

	if len(set.cascades) == 0 {
		return nil, errors.Wrapf(ErrNoCascades, "searched %v", dirs)
	}

	logger.Info("eye cascades loaded", logger.LoggerOptions{Key: "count", Data: len(set.cascades)})
	return set, nil
}

func loadCascade(kind CascadeKind, dirs []string) (*Cascade, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, kind.File())
		if _, err := os.Stat(path); err != nil {
			continue
		}

		classifier := gocv.NewCascadeClassifier()
		if !classifier.Load(path) {
			classifier.Close()
			return nil, errors.Errorf("failed to read cascade file %s", path)
		}
		return &Cascade{Kind: kind, Path: path, classifier: classifier}, nil
	}
	return nil, errors.Errorf("%s not found", kind.File())
}

// Get returns the cascade of the given kind, if loaded.
func (s *CascadeSet) Get(kind CascadeKind) (*Cascade, bool) {
	if s == nil {
		return nil, false
	}
	c, ok := s.cascades[kind]
	return c, ok
}

// Detectors returns the loaded cascades among kinds, preserving order.
func (s *CascadeSet) Detectors(kinds ...CascadeKind) []RectDetector {
	var out []RectDetector
	for _, k := range kinds {
		if c, ok := s.Get(k); ok {
			out = append(out, c)
		}
	}
	return out
}

// Close releases every classifier in the set.
func (s *CascadeSet) Close() {
	if s == nil {
		return
	}
	for _, c := range s.cascades {
		c.Close()
	}
	s.cascades = nil
}
