package engine

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a backend.
type Config struct {
	Backend string       `mapstructure:"backend" yaml:"backend" json:"backend"`
	ONNX    ONNXConfig   `mapstructure:"onnx" yaml:"onnx" json:"onnx"`
	Vision  VisionConfig `mapstructure:"vision" yaml:"vision" json:"vision"`
}

// New builds the engine named by cfg.Backend.
func New(ctx context.Context, cfg Config) (Engine, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendONNX:
		return wrap(NewONNX(cfg.ONNX))
	case BackendTesseract:
		return wrap(NewTesseract())
	case BackendVision:
		return wrap(NewVision(ctx, cfg.Vision))
	default:
		return nil, fmt.Errorf("unknown ocr backend %q", cfg.Backend)
	}
}

// wrap keeps a failed constructor from yielding a non-nil Engine holding a
// nil pointer.
func wrap[E Engine](e E, err error) (Engine, error) {
	if err != nil {
		return nil, err
	}
	return e, nil
}

// FactoryFor returns a Factory bound to cfg, for use with Shared.
func FactoryFor(cfg Config) Factory {
	return func(ctx context.Context) (Engine, error) { return New(ctx, cfg) }
}
