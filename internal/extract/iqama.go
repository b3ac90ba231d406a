package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/MeKo-Tech/docverify/internal/arabic"
	"github.com/MeKo-Tech/docverify/internal/detection"
)

// IqamaMode selects how many Iqama fields are extracted.
type IqamaMode string

// Iqama extraction depths.
const (
	// ModeMinimal reads only the Arabic-numeral identity number.
	ModeMinimal IqamaMode = "minimal"
	// ModeExtended also reads the English name, Latin number and dates.
	ModeExtended IqamaMode = "extended"
)

// ParseIqamaMode accepts "minimal", "extended" or empty for minimal.
func ParseIqamaMode(s string) (IqamaMode, error) {
	switch IqamaMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeMinimal:
		return ModeMinimal, nil
	case ModeExtended:
		return ModeExtended, nil
	default:
		return "", fmt.Errorf("unknown iqama mode %q", s)
	}
}

// Iqama holds the fields of a Saudi residence permit or national ID. The
// extended fields are empty in minimal mode.
type Iqama struct {
	IqamaNumberArabic  string       `json:"iqama_number_arabic"`
	EnglishName        string       `json:"english_name,omitempty"`
	IqamaNumberEnglish string       `json:"iqama_number_english,omitempty"`
	IssueDate          string       `json:"issue_date,omitempty"`
	ExpiryDate         string       `json:"expiry_date,omitempty"`
	Kind               DocumentType `json:"-"`
}

// DocumentType implements Record.
func (r *Iqama) DocumentType() DocumentType {
	if r.Kind == "" {
		return IqamaType
	}
	return r.Kind
}

// IqamaDigits is the length of an Iqama number.
const IqamaDigits = 10

var (
	arabicDigitRun = regexp.MustCompile(`[\x{0660}-\x{0669}]+`)
	arabicIqama    = regexp.MustCompile(`[\x{0660}-\x{0669}]{10}`)
	latinDigitRun  = regexp.MustCompile(`[0-9]{10,}`)
	englishName    = regexp.MustCompile(`^[A-Z][A-Z\s.]+[A-Z]$`)
	residentName   = regexp.MustCompile(`RESIDENT IDENTITY\s+([A-Z][A-Z\s.]+[A-Z])`)

	iqamaDates = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`),
		regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`),
		regexp.MustCompile(`(\d{4})\.(\d{1,2})\.(\d{1,2})`),
		regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`),
	}
)

// IqamaExtractor reads Iqama and Saudi national ID front sides.
type IqamaExtractor struct {
	Rules *Rules
	Mode  IqamaMode
	Kind  DocumentType
}

// Extract implements Extractor.
func (e *IqamaExtractor) Extract(set detection.Set) (Record, error) {
	rec := &Iqama{IqamaNumberArabic: NotFound, Kind: e.Kind}
	switch e.Mode {
	case "", ModeMinimal:
		rec.IqamaNumberArabic = orNotFound(minimalIqamaNumber(set))
	case ModeExtended:
		rules := e.Rules
		if rules == nil {
			rules = DefaultRules()
		}
		extendedIqama(rec, set, rules.IqamaHeaders)
	default:
		return nil, fmt.Errorf("unknown iqama mode %q", e.Mode)
	}
	if rec.IqamaNumberArabic != NotFound {
		slog.Debug("iqama number found", "number", arabic.Display(rec.IqamaNumberArabic))
	}
	return rec, nil
}

// minimalIqamaNumber returns the first run of exactly ten Arabic-Indic
// digits, scanning the most confident detections first.
func minimalIqamaNumber(set detection.Set) string {
	byConf := set.Clone().SortByConfidence()
	for _, d := range byConf {
		for _, run := range arabicDigitRun.FindAllString(d.Text, -1) {
			if utf8.RuneCountInString(run) == IqamaDigits {
				return run
			}
		}
	}
	return arabicIqama.FindString(byConf.FullText())
}

// extendedIqama walks the detections from the top edge of the card down.
func extendedIqama(rec *Iqama, set detection.Set, headers []string) {
	rec.EnglishName, rec.IqamaNumberEnglish = NotFound, NotFound
	rec.IssueDate, rec.ExpiryDate = NotFound, NotFound

	sorted := set.Clone().SortByTop()
	texts := make([]string, len(sorted))
	for i, d := range sorted {
		text := strings.TrimSpace(d.Text)
		texts[i] = text

		if rec.EnglishName == NotFound && englishName.MatchString(text) && len(text) > 10 && !containsAny(text, headers) {
			rec.EnglishName = text
		}
		if rec.IqamaNumberArabic == NotFound {
			for _, run := range arabicDigitRun.FindAllString(text, -1) {
				if utf8.RuneCountInString(run) >= IqamaDigits {
					rec.IqamaNumberArabic = run
					break
				}
			}
		}
		if rec.IqamaNumberEnglish == NotFound {
			for _, run := range latinDigitRun.FindAllString(text, -1) {
				if len(run) == IqamaDigits {
					rec.IqamaNumberEnglish = run
					break
				}
			}
		}
		for _, re := range iqamaDates {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				date := strings.Join(m[1:], "/")
				switch {
				case rec.IssueDate == NotFound:
					rec.IssueDate = date
				case rec.ExpiryDate == NotFound:
					rec.ExpiryDate = date
				}
			}
		}
	}

	if rec.EnglishName == NotFound {
		if m := residentName.FindStringSubmatch(strings.Join(texts, " ")); m != nil {
			rec.EnglishName = strings.TrimSpace(m[1])
		}
	}
}
