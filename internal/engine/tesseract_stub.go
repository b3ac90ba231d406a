//go:build !tesseract

package engine

import (
	"context"
	"fmt"
	"image"

	"github.com/MeKo-Tech/docverify/internal/detection"
)

// Tesseract is unavailable in builds without the tesseract tag.
type Tesseract struct{}

// NewTesseract reports that the binary was built without libtesseract.
func NewTesseract() (*Tesseract, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags tesseract", ErrBackendUnavailable)
}

func (*Tesseract) Name() string { return BackendTesseract }

func (*Tesseract) ReadText(context.Context, image.Image, PassConfig) ([]detection.Detection, error) {
	return nil, ErrBackendUnavailable
}

func (*Tesseract) Close() error { return nil }
