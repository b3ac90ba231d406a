//go:build tesseract

package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/models"
	"github.com/MeKo-Tech/docverify/internal/utils"
)

var tessLanguages = map[string]string{
	models.LangEnglish: "eng",
	models.LangArabic:  "ara",
}

// Tesseract is the libtesseract backend. A client is not safe for concurrent
// use, so calls are serialized.
type Tesseract struct {
	client *gosseract.Client
	mu     sync.Mutex
}

// NewTesseract creates a Tesseract client.
func NewTesseract() (*Tesseract, error) {
	return &Tesseract{client: gosseract.NewClient()}, nil
}

// Name implements Engine.
func (t *Tesseract) Name() string { return BackendTesseract }

// ReadText reads text lines from img. Beam-search passes treat the image as
// a single uniform block.
func (t *Tesseract) ReadText(ctx context.Context, img image.Image, pass PassConfig) ([]detection.Detection, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	langs := make([]string, 0, len(pass.Languages))
	for _, l := range pass.Languages {
		if code, ok := tessLanguages[l]; ok {
			langs = append(langs, code)
		}
	}
	if len(langs) == 0 {
		langs = []string{"eng"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.client.SetLanguage(langs...); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	mode := gosseract.PSM_AUTO
	if pass.BeamSearch() {
		mode = gosseract.PSM_SINGLE_BLOCK
	}
	if err := t.client.SetPageSegMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation: %w", err)
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract failed: %w", err)
	}

	out := make([]detection.Detection, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		r := b.Box
		out = append(out, detection.Detection{
			Box:        detection.QuadFromBox(utils.NewBox(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y))),
			Text:       text,
			Confidence: b.Confidence / 100,
			Pass:       pass.Name,
		})
	}
	return out, nil
}

// Close releases the client.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
