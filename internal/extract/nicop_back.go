package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/MeKo-Tech/docverify/internal/detection"
)

// NICOPBack holds the addresses printed on the back of a NICOP/CNIC card.
type NICOPBack struct {
	PresentAddress   string `json:"present_address"`
	PermanentAddress string `json:"permanent_address"`
}

// DocumentType implements Record.
func (*NICOPBack) DocumentType() DocumentType { return NICOPBackType }

var (
	presentLabel   = regexp.MustCompile(`(?i)present\s+address\s*:?\s*`)
	permanentLabel = regexp.MustCompile(`(?i)permanent\s+address\s*:?\s*`)
	leadingCNIC    = regexp.MustCompile(`^\s*\d{5}[-\s]?\d{7}[-\s]?\d\s*`)
	trailingRef    = regexp.MustCompile(`[\s;:,-]*\d{11,15}$`)
)

// boundaryPattern compiles labels into one case-insensitive alternation.
func boundaryPattern(labels []string) (*regexp.Regexp, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	re, err := regexp.Compile(`(?is)(?:` + strings.Join(labels, "|") + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid address boundary: %w", err)
	}
	return re, nil
}

// NICOPBackExtractor reads NICOP/CNIC back sides.
type NICOPBackExtractor struct {
	Rules *Rules
}

// Extract implements Extractor.
func (e *NICOPBackExtractor) Extract(set detection.Set) (Record, error) {
	rules := e.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	present, err := boundaryPattern(rules.PresentBoundaries)
	if err != nil {
		return nil, err
	}
	permanent, err := boundaryPattern(rules.PermanentBoundaries)
	if err != nil {
		return nil, err
	}

	text := newBackText(joinTexts(items(set)), rules)
	return &NICOPBack{
		PresentAddress:   orNotFound(text.addressAfter(presentLabel, present)),
		PermanentAddress: orNotFound(text.addressAfter(permanentLabel, permanent)),
	}, nil
}

// backText keeps the joined card text twice: raw, and with the OCR
// replacement table applied token by token. Labels and boundaries are found
// in the cleaned copy; values are cut from the raw one.
type backText struct {
	raw, clean           string
	rawStart, cleanStart []int
	rawLen, cleanLen     []int
}

func newBackText(joined string, rules *Rules) *backText {
	t := &backText{}
	var raw, clean strings.Builder
	for i, tok := range strings.Fields(joined) {
		if i > 0 {
			raw.WriteByte(' ')
			clean.WriteByte(' ')
		}
		c := rules.CleanOCRText(tok)
		t.rawStart = append(t.rawStart, raw.Len())
		t.rawLen = append(t.rawLen, len(tok))
		t.cleanStart = append(t.cleanStart, clean.Len())
		t.cleanLen = append(t.cleanLen, len(c))
		raw.WriteString(tok)
		clean.WriteString(c)
	}
	t.raw, t.clean = raw.String(), clean.String()
	return t
}

// rawOffset maps a byte offset in the cleaned text onto the raw text.
// Offsets inside a token whose length changed are clamped to that token.
func (t *backText) rawOffset(off int) int {
	if off >= len(t.clean) {
		return len(t.raw)
	}
	k := sort.Search(len(t.cleanStart), func(i int) bool { return t.cleanStart[i] > off }) - 1
	if k < 0 {
		return 0
	}
	intra := off - t.cleanStart[k]
	if intra >= t.cleanLen[k] {
		return t.rawStart[k] + t.rawLen[k] + intra - t.cleanLen[k]
	}
	return t.rawStart[k] + min(intra, t.rawLen[k])
}

// addressAfter returns the raw text between label and the first boundary,
// or up to the end when no boundary follows.
func (t *backText) addressAfter(label, boundary *regexp.Regexp) string {
	loc := label.FindStringIndex(t.clean)
	if loc == nil {
		return ""
	}
	start, end := loc[1], len(t.clean)
	if boundary != nil {
		if b := boundary.FindStringIndex(t.clean[start:]); b != nil {
			end = start + b[0]
		}
	}
	from, to := t.rawOffset(start), t.rawOffset(end)
	if to < from {
		to = from
	}
	return CleanAddress(t.raw[from:to])
}

// CleanAddress collapses whitespace and strips an identity number captured
// at the start or a long reference number at the end.
func CleanAddress(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = leadingCNIC.ReplaceAllString(s, "")
	s = trailingRef.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
