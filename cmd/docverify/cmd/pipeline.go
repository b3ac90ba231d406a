package cmd

import (
	"context"
	"fmt"

	"github.com/MeKo-Tech/docverify/internal/config"
	"github.com/MeKo-Tech/docverify/internal/engine"
	"github.com/MeKo-Tech/docverify/internal/pipeline"
)

// engineFactory builds the OCR engine for cfg. Tests replace it.
var engineFactory = func(cfg *config.Config) (engine.Factory, error) {
	ec, err := cfg.ToEngineConfig()
	if err != nil {
		return nil, err
	}
	return engine.FactoryFor(ec), nil
}

// buildPipeline assembles a pipeline around the process-wide engine.
// Callers release the engine with engine.ShutdownShared.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, error) {
	factory, err := engineFactory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure OCR engine: %w", err)
	}
	eng, err := engine.Shared(ctx, factory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OCR engine: %w", err)
	}
	b, err := cfg.NewPipelineBuilder()
	if err != nil {
		return nil, err
	}
	return b.WithEngine(eng).Build()
}
