package extract

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/docverify/internal/detection"
)

// ErrMalformedDetection reports a detection whose box cannot be used.
var ErrMalformedDetection = errors.New("malformed detection")

// FieldExtractionError is a structural failure inside an extractor.
type FieldExtractionError struct {
	Document DocumentType
	Err      error
}

func (e *FieldExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Document, e.Err)
}

func (e *FieldExtractionError) Unwrap() error { return e.Err }

// Run validates set, then calls ext. Malformed boxes and panics are returned
// as *FieldExtractionError.
func Run(t DocumentType, ext Extractor, set detection.Set) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = &FieldExtractionError{Document: t, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	for i, d := range set {
		if !d.Box.Valid() {
			return nil, &FieldExtractionError{
				Document: t,
				Err:      fmt.Errorf("%w: detection %d has a non-finite box", ErrMalformedDetection, i),
			}
		}
	}
	rec, err = ext.Extract(set)
	if err != nil {
		var fe *FieldExtractionError
		if !errors.As(err, &fe) {
			err = &FieldExtractionError{Document: t, Err: err}
		}
		return nil, err
	}
	return rec, nil
}
