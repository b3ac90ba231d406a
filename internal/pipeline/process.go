package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/engine"
	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/preprocess"
)

// PassSummary reports what one detection pass contributed.
type PassSummary struct {
	Name       string `json:"name"`
	Detections int    `json:"detections"`
	Error      string `json:"error,omitempty"`
}

// Outcome is the full result of processing one image.
type Outcome struct {
	Document          extract.DocumentType `json:"document_type"`
	Record            extract.Record       `json:"data,omitempty"`
	Detections        detection.Set        `json:"detections"`
	Passes            []PassSummary        `json:"passes"`
	Duration          time.Duration        `json:"duration_ns"`
	VisualizationPath string               `json:"visualization_path,omitempty"`
}

// FailedPasses counts the passes that returned an error.
func (o *Outcome) FailedPasses() int {
	n := 0
	for _, p := range o.Passes {
		if p.Error != "" {
			n++
		}
	}
	return n
}

// passesFor fills in the recognition languages of t on passes that do not
// name their own.
func passesFor(t extract.DocumentType, passes []engine.PassConfig) []engine.PassConfig {
	langs := []string{"en"}
	if t == extract.IqamaType || t == extract.SaudiNationalIDType {
		langs = []string{"ar", "en"}
	}
	out := make([]engine.PassConfig, len(passes))
	for i, p := range passes {
		if len(p.Languages) == 0 {
			p = p.WithLanguages(langs...)
		}
		out[i] = p
	}
	return out
}

// Process runs every stage on src and extracts a record of type t. When no
// text survives deduplication it returns the outcome alongside
// ErrNoTextDetected, with a nil Record.
func (p *Pipeline) Process(ctx context.Context, t extract.DocumentType, src Source) (*Outcome, error) {
	start := time.Now()
	ext, err := extract.For(t, p.extractOptions())
	if err != nil {
		return nil, err
	}

	stage := time.Now()
	pre, err := src.preprocess(p.cfg.Preprocess)
	if err != nil {
		return nil, err
	}
	slog.Debug("pipeline stage", "stage", "preprocess", "document", t, "duration", time.Since(stage))

	stage = time.Now()
	results := engine.RunPasses(ctx, p.engine, pre.Enhanced, passesFor(t, p.cfg.Passes), p.cfg.ConcurrentPasses)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := &Outcome{Document: t, Passes: make([]PassSummary, len(results))}
	for i, r := range results {
		out.Passes[i] = PassSummary{Name: r.Pass, Detections: len(r.Detections)}
		if r.Err != nil {
			out.Passes[i].Error = r.Err.Error()
		}
	}
	merged := detection.Merge(results)
	set := detection.Deduplicate(merged, p.cfg.Dedup)
	slog.Debug("pipeline stage",
		"stage", "detect",
		"document", t,
		"detections", len(merged),
		"kept", len(set),
		"duration", time.Since(stage))

	if pre.Scale > 0 && pre.Scale != 1 {
		for i := range set {
			set[i].Box = set[i].Box.Scale(1 / pre.Scale)
		}
	}
	out.Detections = set

	if p.cfg.VisualizationDir != "" {
		path, err := p.visualize(t, pre, set)
		if err != nil {
			slog.Warn("failed to write visualization", "document", t, "error", err)
		} else {
			out.VisualizationPath = path
		}
	}

	if len(set) == 0 {
		out.Duration = time.Since(start)
		return out, ErrNoTextDetected
	}

	stage = time.Now()
	rec, err := extract.Run(t, ext, set)
	if err != nil {
		return nil, err
	}
	slog.Debug("pipeline stage", "stage", "extract", "document", t, "duration", time.Since(stage))

	out.Record = rec
	out.Duration = time.Since(start)
	slog.Info("document processed",
		"document", t,
		"detections", len(set),
		"failed_passes", out.FailedPasses(),
		"duration", out.Duration)
	return out, nil
}

func (p *Pipeline) visualize(t extract.DocumentType, pre *preprocess.Result, set detection.Set) (string, error) {
	if err := os.MkdirAll(p.cfg.VisualizationDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create visualization dir: %w", err)
	}
	path := filepath.Join(p.cfg.VisualizationDir, fmt.Sprintf("%s_%s.png", t, uuid.NewString()))
	f, err := os.Create(path) //nolint:gosec // G304: path is built from the configured dir
	if err != nil {
		return "", fmt.Errorf("failed to create visualization: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := png.Encode(f, RenderDetections(pre.Original, set)); err != nil {
		return "", fmt.Errorf("failed to encode visualization: %w", err)
	}
	return path, nil
}

// Extract is the tagged dispatch over the supported document types.
func (p *Pipeline) Extract(ctx context.Context, t extract.DocumentType, src Source) (extract.Record, error) {
	out, err := p.Process(ctx, t, src)
	if err != nil {
		return nil, err
	}
	return out.Record, nil
}

func extractAs[R extract.Record](ctx context.Context, p *Pipeline, t extract.DocumentType, src Source) (R, error) {
	var zero R
	rec, err := p.Extract(ctx, t, src)
	if err != nil {
		return zero, err
	}
	r, ok := rec.(R)
	if !ok {
		return zero, fmt.Errorf("unexpected %T record for %s", rec, t)
	}
	return r, nil
}

// ExtractNICOPFront reads the front of a NICOP card.
func (p *Pipeline) ExtractNICOPFront(ctx context.Context, src Source) (*extract.NICOPFront, error) {
	return extractAs[*extract.NICOPFront](ctx, p, extract.NICOPFrontType, src)
}

// ExtractNICOPBack reads the address side of a NICOP card.
func (p *Pipeline) ExtractNICOPBack(ctx context.Context, src Source) (*extract.NICOPBack, error) {
	return extractAs[*extract.NICOPBack](ctx, p, extract.NICOPBackType, src)
}

// ExtractPassportFront reads a passport data page.
func (p *Pipeline) ExtractPassportFront(ctx context.Context, src Source) (*extract.Passport, error) {
	return extractAs[*extract.Passport](ctx, p, extract.PassportType, src)
}

// ExtractIqamaFront reads the front of an Iqama.
func (p *Pipeline) ExtractIqamaFront(ctx context.Context, src Source) (*extract.Iqama, error) {
	return extractAs[*extract.Iqama](ctx, p, extract.IqamaType, src)
}

// IsNoText reports whether err means the image carried no readable text.
func IsNoText(err error) bool { return errors.Is(err, ErrNoTextDetected) }
