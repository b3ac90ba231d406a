//nolint:lll
package config

import (
	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/engine"
	"github.com/MeKo-Tech/docverify/internal/preprocess"
)

// Config is the complete docverify configuration. It is loaded from a
// config file, DOCVERIFY_* environment variables and command-line flags.
type Config struct {
	// Global settings
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Preprocess preprocess.Options     `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Engine     EngineConfig           `mapstructure:"engine" yaml:"engine" json:"engine"`
	Dedup      detection.DedupOptions `mapstructure:"dedup" yaml:"dedup" json:"dedup"`
	Extract    ExtractConfig          `mapstructure:"extract" yaml:"extract" json:"extract"`
	Server     ServerConfig           `mapstructure:"server" yaml:"server" json:"server"`
	Output     OutputConfig           `mapstructure:"output" yaml:"output" json:"output"`
	Batch      BatchConfig            `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// EngineConfig selects the OCR backend and its detection passes.
type EngineConfig struct {
	Backend          string              `mapstructure:"backend" yaml:"backend" json:"backend"`
	ConcurrentPasses bool                `mapstructure:"concurrent_passes" yaml:"concurrent_passes" json:"concurrent_passes"`
	Passes           []engine.PassConfig `mapstructure:"passes" yaml:"passes" json:"passes"`
	Detector         DetectorConfig      `mapstructure:"detector" yaml:"detector" json:"detector"`
	NumThreads       int                 `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	UseServerModel   bool                `mapstructure:"use_server_model" yaml:"use_server_model" json:"use_server_model"`
	Vision           engine.VisionConfig `mapstructure:"vision" yaml:"vision" json:"vision"`
}

// DetectorConfig overrides the ONNX text detector thresholds.
type DetectorConfig struct {
	ModelPath    string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DBThresh     float32 `mapstructure:"db_thresh" yaml:"db_thresh" json:"db_thresh"`
	BoxThresh    float32 `mapstructure:"box_thresh" yaml:"box_thresh" json:"box_thresh"`
	MaxImageSize int     `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
}

// ExtractConfig configures the field extractors.
type ExtractConfig struct {
	IqamaMode string `mapstructure:"iqama_mode" yaml:"iqama_mode" json:"iqama_mode"`
	RulesFile string `mapstructure:"rules_file" yaml:"rules_file" json:"rules_file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host             string  `mapstructure:"host" yaml:"host" json:"host"`
	Port             int     `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin       string  `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB      int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec       int     `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout  int     `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit        float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	RateBurst        int     `mapstructure:"rate_burst" yaml:"rate_burst" json:"rate_burst"`
	VisualizationDir string  `mapstructure:"visualization_dir" yaml:"visualization_dir" json:"visualization_dir"`
}

// OutputConfig contains CLI output settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`
}
