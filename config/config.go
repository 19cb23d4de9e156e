// Package config - Environment driven settings for the eye preservation stage.
package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-eyes/compositor"
	"github.com/nvr-ai/go-eyes/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid eye preservation config")

// Environment variable names.
const (
	EnvEnabled           = "EYES_ENABLED"
	EnvFeatherRadiusPx   = "EYES_FEATHER_RADIUS_PX"
	EnvMode              = "EYES_MODE"
	EnvCascadeDir        = "EYES_CASCADE_DIR"
	EnvFaceMeshModel     = "EYES_FACEMESH_MODEL"
	EnvFaceDetectorModel = "EYES_FACE_DETECTOR_MODEL"
	EnvOnnxRuntimeLib    = "EYES_ONNXRUNTIME_LIB"
	EnvLogLevel          = "EYES_LOG_LEVEL"
)

// Defaults.
const (
	DefaultFeatherRadiusPx = 18
	DefaultCascadeDir      = "./models/haarcascades"
	DefaultLogLevel        = "info"
)

// Config holds the preservation settings. The compositor does not own these;
// the CLI and preserve.NewFromConfig consume them. A non-empty
// FaceMeshModelPath enables the landmark strategy.
type Config struct {
	Enabled               bool
	FeatherRadiusPx       int             `validate:"gte=0,lte=256"`
	Mode                  compositor.Mode `validate:"blendmode"`
	CascadeDir            string
	FaceMeshModelPath     string `validate:"omitempty,file"`
	FaceDetectorModelPath string `validate:"omitempty,file"`
	OnnxRuntimeLibPath    string
	LogLevel              string `validate:"oneof=debug info warn error"`
}

var validate = validator.New()

func init() {
	validate.RegisterValidation("blendmode", func(fl validator.FieldLevel) bool {
		return compositor.Mode(fl.Field().String()).Valid()
	})
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Enabled:         true,
		FeatherRadiusPx: DefaultFeatherRadiusPx,
		Mode:            compositor.ModeAdaptive,
		CascadeDir:      DefaultCascadeDir,
		LogLevel:        DefaultLogLevel,
	}
}

// Load reads an optional .env file from the working directory, overlays the
// environment on Default and validates the result.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		logger.Debug("no env file loaded", logger.LoggerOptions{Key: "error", Data: err.Error()})
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function such as os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if v, ok := lookup(EnvEnabled); ok {
		b, err := cast.ToBoolE(strings.TrimSpace(v))
		if err != nil {
			return cfg, errors.Wrapf(ErrInvalidConfig, "%s=%q", EnvEnabled, v)
		}
		cfg.Enabled = b
	}
	if v, ok := lookup(EnvFeatherRadiusPx); ok {
		n, err := cast.ToIntE(strings.TrimSpace(v))
		if err != nil {
			return cfg, errors.Wrapf(ErrInvalidConfig, "%s=%q", EnvFeatherRadiusPx, v)
		}
		cfg.FeatherRadiusPx = n
	}
	if v, ok := lookup(EnvMode); ok {
		cfg.Mode = compositor.Mode(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup(EnvCascadeDir); ok {
		cfg.CascadeDir = v
	}
	if v, ok := lookup(EnvFaceMeshModel); ok {
		cfg.FaceMeshModelPath = v
	}
	if v, ok := lookup(EnvFaceDetectorModel); ok {
		cfg.FaceDetectorModelPath = v
	}
	if v, ok := lookup(EnvOnnxRuntimeLib); ok {
		cfg.OnnxRuntimeLibPath = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}

	return cfg, cfg.Validate()
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return nil
}
