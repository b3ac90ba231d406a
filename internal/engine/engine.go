// Package engine runs OCR passes over an image with a pluggable backend.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/recognizer"
)

// Backend names.
const (
	BackendONNX      = "onnx"
	BackendTesseract = "tesseract"
	BackendVision    = "vision"
)

// ErrBackendUnavailable is returned for a backend that was not compiled in
// or cannot be reached.
var ErrBackendUnavailable = errors.New("ocr backend unavailable")

// Engine reads text regions from an image.
type Engine interface {
	Name() string
	ReadText(ctx context.Context, img image.Image, pass PassConfig) ([]detection.Detection, error)
	Close() error
}

// PassConfig is one detection configuration applied to the whole image.
// Zero thresholds disable region merging.
type PassConfig struct {
	Name            string   `mapstructure:"name" yaml:"name" json:"name"`
	Decoder         string   `mapstructure:"decoder" yaml:"decoder" json:"decoder"`
	BeamWidth       int      `mapstructure:"beam_width" yaml:"beam_width" json:"beam_width"`
	WidthThreshold  float64  `mapstructure:"width_ths" yaml:"width_ths" json:"width_ths"`
	HeightThreshold float64  `mapstructure:"height_ths" yaml:"height_ths" json:"height_ths"`
	Languages       []string `mapstructure:"languages" yaml:"languages" json:"languages,omitempty"`
}

// Validate checks the pass configuration.
func (p PassConfig) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("pass name cannot be empty")
	}
	if err := recognizer.ValidateDecoder(p.Decoder); err != nil {
		return fmt.Errorf("pass %s: %w", p.Name, err)
	}
	if p.BeamWidth < 0 {
		return fmt.Errorf("pass %s: beam width cannot be negative", p.Name)
	}
	if p.WidthThreshold < 0 || p.HeightThreshold < 0 {
		return fmt.Errorf("pass %s: merge thresholds cannot be negative", p.Name)
	}
	return nil
}

// DecodeOptions returns the recognizer decoder settings for the pass.
func (p PassConfig) DecodeOptions() recognizer.DecodeOptions {
	return recognizer.DecodeOptions{Decoder: p.Decoder, BeamWidth: p.BeamWidth}
}

// BeamSearch reports whether the pass asks for the beam decoder.
func (p PassConfig) BeamSearch() bool {
	return strings.EqualFold(p.Decoder, recognizer.DecoderBeamSearch)
}

// WithLanguages returns a copy of p restricted to langs.
func (p PassConfig) WithLanguages(langs ...string) PassConfig {
	p.Languages = append([]string(nil), langs...)
	return p
}

// DefaultPasses returns the two standard passes: a greedy pass with no
// merging, and a beam-search pass that merges neighbouring boxes on a line.
func DefaultPasses() []PassConfig {
	return []PassConfig{
		{Name: "default", Decoder: recognizer.DecoderGreedy},
		{
			Name:            "beamsearch",
			Decoder:         recognizer.DecoderBeamSearch,
			BeamWidth:       recognizer.DefaultBeamWidth,
			WidthThreshold:  0.5,
			HeightThreshold: 0.5,
		},
	}
}

// PassError is a failure confined to one pass.
type PassError struct {
	Pass string
	Err  error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("detection pass %s failed: %v", e.Pass, e.Err)
}

func (e *PassError) Unwrap() error { return e.Err }
