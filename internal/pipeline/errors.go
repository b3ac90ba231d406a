package pipeline

import (
	"errors"

	"github.com/MeKo-Tech/docverify/internal/engine"
	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/utils"
)

// ErrNoTextDetected reports that no detection survived the passes and
// deduplication. It is distinct from fields that are "Not Found".
var ErrNoTextDetected = errors.New("no text detected in image")

// ErrImageDecode marks inputs that do not decode to a raster image.
var ErrImageDecode = utils.ErrImageDecode

// Error types raised by the stages the pipeline runs.
type (
	ImageDecodeError     = utils.ImageDecodeError
	PassError            = engine.PassError
	FieldExtractionError = extract.FieldExtractionError
)
