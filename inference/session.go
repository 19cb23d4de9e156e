// Package inference - onnxruntime sessions for the optional landmark model.
package inference

import (
	"os"
	"runtime"
	"sync"

	"github.com/nvr-ai/go-eyes/logger"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrRuntimeUnavailable is returned when the onnxruntime shared library cannot be found.
var ErrRuntimeUnavailable = errors.New("onnxruntime library not available")

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// DefaultSharedLibPath returns the conventional onnxruntime library location
// for the current platform.
func DefaultSharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}

// InitializeRuntime loads the onnxruntime library once per process. An empty
// libPath uses DefaultSharedLibPath. Later calls return the first result.
func InitializeRuntime(libPath string) error {
	runtimeOnce.Do(func() {
		if libPath == "" {
			libPath = DefaultSharedLibPath()
		}
		if _, err := os.Stat(libPath); err != nil {
			runtimeErr = errors.Wrapf(ErrRuntimeUnavailable, "%s: %v", libPath, err)
			return
		}

		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			runtimeErr = errors.Wrap(err, "error initializing ORT environment")
			return
		}
		logger.Info("onnxruntime initialised", logger.LoggerOptions{Key: "library", Data: libPath})
	})
	return runtimeErr
}

// Output names one float32 model output and its shape.
type Output struct {
	Name  string
	Shape ort.Shape
}

// SessionConfig describes a single input float32 model with one or more
// outputs.
type SessionConfig struct {
	ModelPath  string
	InputName  string
	InputShape ort.Shape
	Outputs    []Output
	// IntraOpThreads parallelises within graph nodes; 0 uses the default.
	IntraOpThreads int
}

// Session represents a model session from the onnxruntime with pre-bound
// tensors. Run is serialised because the tensors are shared.
type Session struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Outputs []*ort.Tensor[float32]

	mu sync.Mutex
}

// NewSession creates the tensors and the session. InitializeRuntime must
// have succeeded first.
func NewSession(cfg SessionConfig) (*Session, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrap(err, "model file")
	}
	if len(cfg.Outputs) == 0 {
		return nil, errors.New("session needs at least one output")
	}

	input, err := ort.NewEmptyTensor[float32](cfg.InputShape)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}

	s := &Session{Input: input}
	names := make([]string, 0, len(cfg.Outputs))
	bound := make([]ort.ArbitraryTensor, 0, len(cfg.Outputs))
	for _, o := range cfg.Outputs {
		t, err := ort.NewEmptyTensor[float32](o.Shape)
		if err != nil {
			s.Close()
			return nil, errors.Wrapf(err, "error creating output tensor %s", o.Name)
		}
		s.Outputs = append(s.Outputs, t)
		names = append(names, o.Name)
		bound = append(bound, t)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(cfg.IntraOpThreads)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		names,
		[]ort.ArbitraryTensor{input},
		bound,
		options,
	)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "error creating ORT session")
	}
	s.Session = session

	logger.Info("onnx session created",
		logger.LoggerOptions{Key: "model", Data: cfg.ModelPath},
		logger.LoggerOptions{Key: "input", Data: cfg.InputShape.String()},
		logger.LoggerOptions{Key: "outputs", Data: names},
	)

	return s, nil
}

// Run fills the input with fill, runs the model and hands the output data,
// in SessionConfig.Outputs order, to read. The whole sequence holds the
// session lock.
func (s *Session) Run(fill func(input []float32) error, read func(outputs [][]float32) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Session == nil {
		return errors.New("session closed")
	}
	if err := fill(s.Input.GetData()); err != nil {
		return err
	}
	if err := s.Session.Run(); err != nil {
		return errors.Wrap(err, "onnx run")
	}

	outputs := make([][]float32, len(s.Outputs))
	for i, t := range s.Outputs {
		outputs[i] = t.GetData()
	}
	return read(outputs)
}

// Close releases the resources associated with the Session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	for _, t := range s.Outputs {
		t.Destroy()
	}
	s.Outputs = nil
	if s.Session != nil {
		s.Session.Destroy()
		s.Session = nil
	}
}
