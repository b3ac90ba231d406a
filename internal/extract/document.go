// Package extract turns deduplicated OCR detections into typed document
// records.
package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/MeKo-Tech/docverify/internal/detection"
)

// NotFound marks a field no rule could resolve.
const NotFound = "Not Found"

// DocumentType tags a supported document layout.
type DocumentType string

// Supported document types.
const (
	NICOPFrontType      DocumentType = "nicop_front"
	NICOPBackType       DocumentType = "nicop_back"
	PassportType        DocumentType = "passport"
	IqamaType           DocumentType = "iqama"
	SaudiNationalIDType DocumentType = "saudi_national_id"
)

// DocumentTypes lists every supported type in a stable order.
func DocumentTypes() []DocumentType {
	return []DocumentType{NICOPFrontType, NICOPBackType, PassportType, IqamaType, SaudiNationalIDType}
}

var documentAliases = map[string]DocumentType{
	"nicop_front":       NICOPFrontType,
	"nicop-front":       NICOPFrontType,
	"nicop_back":        NICOPBackType,
	"nicop-back":        NICOPBackType,
	"passport":          PassportType,
	"passport_front":    PassportType,
	"passport-front":    PassportType,
	"iqama":             IqamaType,
	"iqama_front":       IqamaType,
	"iqama-front":       IqamaType,
	"saudi_national_id": SaudiNationalIDType,
	"saudi-national-id": SaudiNationalIDType,
}

// ParseDocumentType accepts the canonical names plus the dashed and
// "_front" forms used by upload routes.
func ParseDocumentType(s string) (DocumentType, error) {
	if t, ok := documentAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

func (t DocumentType) String() string { return string(t) }

// Record is the result of one extraction.
type Record interface {
	DocumentType() DocumentType
}

// Extractor derives a record from a deduplicated detection set.
type Extractor interface {
	Extract(set detection.Set) (Record, error)
}

// Options configures the extractors built by For.
type Options struct {
	Rules     *Rules
	IqamaMode IqamaMode
	Now       func() time.Time
}

func (o Options) rules() *Rules {
	if o.Rules != nil {
		return o.Rules
	}
	return DefaultRules()
}

// For returns the extraction strategy for t.
func For(t DocumentType, opts Options) (Extractor, error) {
	rules := opts.rules()
	switch t {
	case NICOPFrontType:
		return &NICOPFrontExtractor{Rules: rules}, nil
	case NICOPBackType:
		return &NICOPBackExtractor{Rules: rules}, nil
	case PassportType:
		return &PassportExtractor{Rules: rules, Now: opts.Now}, nil
	case IqamaType, SaudiNationalIDType:
		return &IqamaExtractor{Rules: rules, Mode: opts.IqamaMode, Kind: t}, nil
	default:
		return nil, fmt.Errorf("unknown document type %q", t)
	}
}
