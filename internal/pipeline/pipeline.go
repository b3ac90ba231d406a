// Package pipeline runs documents through preprocessing, multi-pass OCR,
// deduplication and field extraction.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/engine"
	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/preprocess"
)

// Config holds configuration for the pipeline stages.
type Config struct {
	Preprocess       preprocess.Options
	Passes           []engine.PassConfig
	ConcurrentPasses bool
	Dedup            detection.DedupOptions
	IqamaMode        extract.IqamaMode
	Rules            *extract.Rules
	VisualizationDir string
}

// DefaultConfig returns the configuration used for ID card photos.
func DefaultConfig() Config {
	return Config{
		Preprocess: preprocess.DefaultOptions(),
		Passes:     engine.DefaultPasses(),
		Dedup:      detection.DefaultDedupOptions(),
		IqamaMode:  extract.ModeMinimal,
		Rules:      extract.DefaultRules(),
	}
}

// Validate checks the stage settings.
func (c Config) Validate() error {
	if err := c.Preprocess.Validate(); err != nil {
		return fmt.Errorf("invalid preprocess options: %w", err)
	}
	if len(c.Passes) == 0 {
		return errors.New("at least one detection pass is required")
	}
	seen := map[string]bool{}
	for _, p := range c.Passes {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate pass name %q", p.Name)
		}
		seen[p.Name] = true
	}
	if c.Dedup.MinConfidence < 0 || c.Dedup.Similarity < 0 || c.Dedup.Similarity > 100 || c.Dedup.Distance < 0 {
		return fmt.Errorf("invalid dedup options %+v", c.Dedup)
	}
	if _, err := extract.ParseIqamaMode(string(c.IqamaMode)); err != nil {
		return err
	}
	if c.Rules != nil {
		if err := c.Rules.Validate(); err != nil {
			return fmt.Errorf("invalid rules: %w", err)
		}
	}
	return nil
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
	eng engine.Engine
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithEngine sets the OCR engine. The pipeline does not own it; closing the
// pipeline leaves the engine open.
func (b *Builder) WithEngine(eng engine.Engine) *Builder {
	b.eng = eng
	return b
}

// WithPreprocess replaces the enhancement options.
func (b *Builder) WithPreprocess(opts preprocess.Options) *Builder {
	b.cfg.Preprocess = opts
	return b
}

// WithPasses replaces the detection passes.
func (b *Builder) WithPasses(passes ...engine.PassConfig) *Builder {
	if len(passes) > 0 {
		b.cfg.Passes = append([]engine.PassConfig(nil), passes...)
	}
	return b
}

// WithConcurrentPasses runs the passes of one document in parallel.
func (b *Builder) WithConcurrentPasses(enabled bool) *Builder {
	b.cfg.ConcurrentPasses = enabled
	return b
}

// WithDedup sets the deduplication thresholds.
func (b *Builder) WithDedup(opts detection.DedupOptions) *Builder {
	b.cfg.Dedup = opts
	return b
}

// WithIqamaMode selects minimal or extended Iqama extraction.
func (b *Builder) WithIqamaMode(mode extract.IqamaMode) *Builder {
	if mode != "" {
		b.cfg.IqamaMode = mode
	}
	return b
}

// WithRules replaces the extractor word lists.
func (b *Builder) WithRules(rules *extract.Rules) *Builder {
	if rules != nil {
		b.cfg.Rules = rules
	}
	return b
}

// WithVisualizationDir writes an annotated PNG of every processed image
// into dir. Empty disables visualization.
func (b *Builder) WithVisualizationDir(dir string) *Builder {
	b.cfg.VisualizationDir = dir
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and returns the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.eng == nil {
		return nil, errors.New("no OCR engine configured")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	cfg := b.cfg
	cfg.Passes = append([]engine.PassConfig(nil), b.cfg.Passes...)
	return &Pipeline{cfg: cfg, engine: b.eng}, nil
}

// Pipeline extracts document fields from images. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	cfg    Config
	engine engine.Engine
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

// Engine returns the OCR engine.
func (p *Pipeline) Engine() engine.Engine { return p.engine }

func (p *Pipeline) extractOptions() extract.Options {
	return extract.Options{Rules: p.cfg.Rules, IqamaMode: p.cfg.IqamaMode}
}
