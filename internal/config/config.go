package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/detector"
	"github.com/MeKo-Tech/docverify/internal/engine"
	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/models"
	"github.com/MeKo-Tech/docverify/internal/pipeline"
	"github.com/MeKo-Tech/docverify/internal/preprocess"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validFormats   = []string{"json", "yaml", "text"}
	validBackends  = []string{engine.BackendONNX, engine.BackendTesseract, engine.BackendVision}
)

// DefaultConfig returns a configuration with the built-in defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	return Config{
		ModelsDir:  models.DefaultModelsDir,
		LogLevel:   "info",
		Preprocess: preprocess.DefaultOptions(),
		Engine: EngineConfig{
			Backend: engine.BackendONNX,
			Passes:  engine.DefaultPasses(),
			Detector: DetectorConfig{
				DBThresh:     det.DBThresh,
				BoxThresh:    det.BoxThresh,
				MaxImageSize: det.MaxImageSize,
			},
		},
		Dedup:   detection.DefaultDedupOptions(),
		Extract: ExtractConfig{IqamaMode: string(extract.ModeMinimal)},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     10,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			RateLimit:       5,
			RateBurst:       10,
		},
		Output: OutputConfig{Format: "json"},
		Batch:  BatchConfig{Workers: 2},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if !slices.Contains(validBackends, strings.ToLower(c.Engine.Backend)) {
		return fmt.Errorf("invalid engine backend: %s (must be one of: %s)", c.Engine.Backend, strings.Join(validBackends, ", "))
	}
	if err := c.Preprocess.Validate(); err != nil {
		return fmt.Errorf("invalid preprocess: %w", err)
	}
	if len(c.Engine.Passes) == 0 {
		return fmt.Errorf("engine.passes must name at least one pass")
	}
	for _, p := range c.Engine.Passes {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("invalid engine.passes: %w", err)
		}
	}
	if err := validateThreshold(float64(c.Engine.Detector.DBThresh), "engine.detector.db_thresh"); err != nil {
		return err
	}
	if err := validateThreshold(float64(c.Engine.Detector.BoxThresh), "engine.detector.box_thresh"); err != nil {
		return err
	}
	if err := validateThreshold(c.Dedup.MinConfidence, "dedup.min_confidence"); err != nil {
		return err
	}
	if c.Dedup.Similarity < 0 || c.Dedup.Similarity > 100 {
		return fmt.Errorf("invalid dedup.similarity: %.1f (must be between 0 and 100)", c.Dedup.Similarity)
	}
	if c.Dedup.Distance < 0 {
		return fmt.Errorf("invalid dedup.distance: %.1f (must not be negative)", c.Dedup.Distance)
	}
	if _, err := extract.ParseIqamaMode(c.Extract.IqamaMode); err != nil {
		return fmt.Errorf("invalid extract.iqama_mode: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("invalid rate limit: %.1f/%d (must not be negative)", c.Server.RateLimit, c.Server.RateBurst)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	return nil
}

// ToEngineConfig resolves model paths under ModelsDir and applies the
// detector overrides.
func (c *Config) ToEngineConfig() (engine.Config, error) {
	cfg := engine.Config{Backend: strings.ToLower(c.Engine.Backend), Vision: c.Engine.Vision}
	if cfg.Backend != engine.BackendONNX {
		return cfg, nil
	}
	modelsDir := models.GetModelsDir(c.ModelsDir)
	onnxCfg, err := engine.DefaultONNXConfig(modelsDir)
	if err != nil {
		return engine.Config{}, err
	}
	det := &onnxCfg.Detector
	det.ModelPath = models.DetectionModelPath(modelsDir, c.Engine.UseServerModel)
	if c.Engine.Detector.ModelPath != "" {
		det.ModelPath = c.Engine.Detector.ModelPath
	}
	if c.Engine.Detector.DBThresh > 0 {
		det.DBThresh = c.Engine.Detector.DBThresh
	}
	if c.Engine.Detector.BoxThresh > 0 {
		det.BoxThresh = c.Engine.Detector.BoxThresh
	}
	if c.Engine.Detector.MaxImageSize > 0 {
		det.MaxImageSize = c.Engine.Detector.MaxImageSize
	}
	det.NumThreads = c.Engine.NumThreads
	for lang, rc := range onnxCfg.Recognizers {
		rc.NumThreads = c.Engine.NumThreads
		onnxCfg.Recognizers[lang] = rc
	}
	cfg.ONNX = onnxCfg
	return cfg, nil
}

// ToPipelineConfig converts the config to pipeline settings, loading the
// rules file when one is configured.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	mode, err := extract.ParseIqamaMode(c.Extract.IqamaMode)
	if err != nil {
		return pipeline.Config{}, err
	}
	rules := extract.DefaultRules()
	if c.Extract.RulesFile != "" {
		if rules, err = extract.LoadRules(c.Extract.RulesFile); err != nil {
			return pipeline.Config{}, err
		}
	}
	return pipeline.Config{
		Preprocess:       c.Preprocess,
		Passes:           slices.Clone(c.Engine.Passes),
		ConcurrentPasses: c.Engine.ConcurrentPasses,
		Dedup:            c.Dedup,
		IqamaMode:        mode,
		Rules:            rules,
		VisualizationDir: c.Server.VisualizationDir,
	}, nil
}

// NewPipelineBuilder returns a pipeline builder carrying every setting of c
// except the engine.
func (c *Config) NewPipelineBuilder() (*pipeline.Builder, error) {
	pc, err := c.ToPipelineConfig()
	if err != nil {
		return nil, err
	}
	return pipeline.NewBuilder().
		WithPreprocess(pc.Preprocess).
		WithPasses(pc.Passes...).
		WithConcurrentPasses(pc.ConcurrentPasses).
		WithDedup(pc.Dedup).
		WithIqamaMode(pc.IqamaMode).
		WithRules(pc.Rules).
		WithVisualizationDir(pc.VisualizationDir), nil
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
