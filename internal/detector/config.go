package detector

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/docverify/internal/models"
	"github.com/MeKo-Tech/docverify/internal/onnx"
)

// Config holds configuration for the text detector.
type Config struct {
	ModelPath    string         `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DBThresh     float32        `mapstructure:"db_thresh" yaml:"db_thresh" json:"db_thresh"`
	BoxThresh    float32        `mapstructure:"box_thresh" yaml:"box_thresh" json:"box_thresh"`
	UnclipRatio  float64        `mapstructure:"unclip_ratio" yaml:"unclip_ratio" json:"unclip_ratio"`
	MinSize      float64        `mapstructure:"min_size" yaml:"min_size" json:"min_size"`
	MaxImageSize int            `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
	UseNMS       bool           `mapstructure:"use_nms" yaml:"use_nms" json:"use_nms"`
	NMSThreshold float64        `mapstructure:"nms_threshold" yaml:"nms_threshold" json:"nms_threshold"`
	NumThreads   int            `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	GPU          onnx.GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// DefaultConfig returns the DB settings used for ID card photos.
func DefaultConfig() Config {
	return Config{
		ModelPath:    models.DetectionModelPath("", false),
		DBThresh:     0.3,
		BoxThresh:    0.5,
		UnclipRatio:  1.5,
		MinSize:      3,
		MaxImageSize: 1280,
		UseNMS:       true,
		NMSThreshold: 0.3,
		GPU:          onnx.DefaultGPUConfig(),
	}
}

// Validate checks threshold ranges.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if c.DBThresh <= 0 || c.DBThresh >= 1 {
		return fmt.Errorf("db threshold must be in (0, 1), got %v", c.DBThresh)
	}
	if c.BoxThresh < 0 || c.BoxThresh >= 1 {
		return fmt.Errorf("box threshold must be in [0, 1), got %v", c.BoxThresh)
	}
	if c.UnclipRatio < 0 {
		return fmt.Errorf("unclip ratio must not be negative, got %v", c.UnclipRatio)
	}
	if c.MaxImageSize < 32 {
		return fmt.Errorf("max image size must be at least 32, got %d", c.MaxImageSize)
	}
	return c.GPU.Validate()
}
