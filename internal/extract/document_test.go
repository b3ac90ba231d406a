package extract

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docverify/internal/detection"
)

func TestParseDocumentType(t *testing.T) {
	tests := map[string]DocumentType{
		"nicop_front":         NICOPFrontType,
		"NICOP-Back":          NICOPBackType,
		"passport_front":      PassportType,
		"iqama-front":         IqamaType,
		" saudi_national_id ": SaudiNationalIDType,
	}
	for in, want := range tests {
		got, err := ParseDocumentType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseDocumentType("driving_licence")
	assert.Error(t, err)
}

func TestFor(t *testing.T) {
	for _, dt := range DocumentTypes() {
		ext, err := For(dt, Options{})
		require.NoError(t, err, dt)
		rec, err := Run(dt, ext, nil)
		require.NoError(t, err, dt)
		assert.Equal(t, dt, rec.DocumentType())
	}
	_, err := For("driving_licence", Options{})
	assert.Error(t, err)
}

type extractorFunc func(detection.Set) (Record, error)

func (f extractorFunc) Extract(set detection.Set) (Record, error) { return f(set) }

func TestRun_Errors(t *testing.T) {
	t.Run("malformed box", func(t *testing.T) {
		set := lines("MUHAMMAD ALI")
		set[0].Box[2].X = math.NaN()
		_, err := Run(NICOPFrontType, &NICOPFrontExtractor{}, set)

		var fe *FieldExtractionError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, NICOPFrontType, fe.Document)
		assert.ErrorIs(t, err, ErrMalformedDetection)
	})

	t.Run("panic", func(t *testing.T) {
		boom := extractorFunc(func(detection.Set) (Record, error) { panic("index out of range") })
		rec, err := Run(PassportType, boom, nil)
		assert.Nil(t, rec)

		var fe *FieldExtractionError
		require.ErrorAs(t, err, &fe)
		assert.Contains(t, err.Error(), "passport extraction failed")
	})

	t.Run("plain error wrapped once", func(t *testing.T) {
		cause := errors.New("bad shape")
		_, err := Run(IqamaType, extractorFunc(func(detection.Set) (Record, error) { return nil, cause }), nil)
		assert.ErrorIs(t, err, cause)

		inner := &FieldExtractionError{Document: NICOPBackType, Err: cause}
		_, err = Run(IqamaType, extractorFunc(func(detection.Set) (Record, error) { return nil, inner }), nil)
		assert.Same(t, inner, err)
	})
}
