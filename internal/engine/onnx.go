package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/docverify/internal/arabic"
	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/detector"
	"github.com/MeKo-Tech/docverify/internal/models"
	"github.com/MeKo-Tech/docverify/internal/recognizer"
	"github.com/MeKo-Tech/docverify/internal/utils"
)

type textDetector interface {
	Detect(img image.Image) (*detector.Result, error)
	Close() error
}

type textRecognizer interface {
	Recognize(img image.Image, box utils.Box, opts recognizer.DecodeOptions) (recognizer.Result, error)
	Close() error
}

// ONNXConfig configures the local detector and one recognizer per language.
type ONNXConfig struct {
	Detector    detector.Config              `mapstructure:"detector" yaml:"detector" json:"detector"`
	Recognizers map[string]recognizer.Config `mapstructure:"recognizers" yaml:"recognizers" json:"recognizers"`
}

// DefaultONNXConfig returns English and Arabic recognizers next to the mobile
// detector under modelsDir.
func DefaultONNXConfig(modelsDir string) (ONNXConfig, error) {
	det := detector.DefaultConfig()
	det.ModelPath = models.DetectionModelPath(modelsDir, false)
	cfg := ONNXConfig{Detector: det, Recognizers: map[string]recognizer.Config{}}
	for _, lang := range []string{models.LangEnglish, models.LangArabic} {
		rc, err := recognizer.DefaultConfig(modelsDir, lang)
		if err != nil {
			return ONNXConfig{}, err
		}
		cfg.Recognizers[lang] = rc
	}
	return cfg, nil
}

// ONNX is the local DB detector plus CTC recognizer backend.
type ONNX struct {
	det  textDetector
	recs map[string]textRecognizer
	mu   sync.RWMutex
}

// NewONNX loads the detector and every configured recognizer.
func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if len(cfg.Recognizers) == 0 {
		return nil, errors.New("at least one recognizer is required")
	}
	det, err := detector.NewDetector(cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	recs := make(map[string]textRecognizer, len(cfg.Recognizers))
	for lang, rc := range cfg.Recognizers {
		if rc.Language == "" {
			rc.Language = lang
		}
		r, err := recognizer.NewRecognizer(rc)
		if err != nil {
			_ = det.Close()
			for _, open := range recs {
				_ = open.Close()
			}
			return nil, fmt.Errorf("failed to create %s recognizer: %w", lang, err)
		}
		recs[lang] = r
	}
	slog.Debug("onnx engine ready", "languages", len(recs))
	return &ONNX{det: det, recs: recs}, nil
}

func newONNX(det textDetector, recs map[string]textRecognizer) *ONNX {
	return &ONNX{det: det, recs: recs}
}

// Name implements Engine.
func (e *ONNX) Name() string { return BackendONNX }

// ReadText detects regions, merges them per the pass thresholds and reads
// each one with every requested recognizer, keeping the most confident
// reading.
func (e *ONNX) ReadText(ctx context.Context, img image.Image, pass PassConfig) ([]detection.Detection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.det == nil {
		return nil, errors.New("engine is closed")
	}
	recs, err := e.recognizersFor(pass.Languages)
	if err != nil {
		return nil, err
	}

	res, err := e.det.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	regions := detector.MergeRegions(res.Regions, pass.WidthThreshold, pass.HeightThreshold)
	opts := pass.DecodeOptions()

	out := make([]detection.Detection, 0, len(regions))
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var best recognizer.Result
		var readErr error
		found := false
		for _, rec := range recs {
			r, err := rec.Recognize(img, region.Box, opts)
			if err != nil {
				readErr = err
				continue
			}
			if !found || r.Confidence > best.Confidence {
				best, found = r, true
			}
		}
		if !found {
			slog.Debug("region unreadable", "pass", pass.Name, "error", readErr)
			continue
		}
		if arabic.ContainsArabic(best.Text) {
			slog.Debug("arabic region", "pass", pass.Name, "text", arabic.Display(best.Text))
		}
		out = append(out, detection.Detection{
			Box:        detection.QuadFromBox(region.Box),
			Text:       best.Text,
			Confidence: best.Confidence,
			Pass:       pass.Name,
		})
	}
	return out, nil
}

// recognizersFor resolves langs in order. An empty list selects English, or
// the only configured language.
func (e *ONNX) recognizersFor(langs []string) ([]textRecognizer, error) {
	if len(langs) == 0 {
		if r, ok := e.recs[models.LangEnglish]; ok {
			return []textRecognizer{r}, nil
		}
		if len(e.recs) == 1 {
			for _, r := range e.recs {
				return []textRecognizer{r}, nil
			}
		}
		return nil, errors.New("no default recognizer configured")
	}
	out := make([]textRecognizer, 0, len(langs))
	for _, lang := range langs {
		r, ok := e.recs[lang]
		if !ok {
			return nil, fmt.Errorf("no recognizer for language %q", lang)
		}
		out = append(out, r)
	}
	return out, nil
}

// Close releases the detector and every recognizer.
func (e *ONNX) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	if e.det != nil {
		errs = append(errs, e.det.Close())
		e.det = nil
	}
	for lang, r := range e.recs {
		errs = append(errs, r.Close())
		delete(e.recs, lang)
	}
	return errors.Join(errs...)
}
