//go:build !tesseract

package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTesseractUnavailable(t *testing.T) {
	_, err := NewTesseract()
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	_, err = New(context.Background(), Config{Backend: BackendTesseract})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
