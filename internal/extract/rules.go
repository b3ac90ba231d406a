package extract

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Country maps a lower-case substring of the card text to a country name.
type Country struct {
	Match string `yaml:"match" json:"match"`
	Name  string `yaml:"name" json:"name"`
}

// Replacement fixes a recurring OCR misread. Whole replacements only apply
// to complete whitespace-separated tokens.
type Replacement struct {
	From  string `yaml:"from" json:"from"`
	To    string `yaml:"to" json:"to"`
	Whole bool   `yaml:"whole" json:"whole"`
}

// DateLabels are the printed labels next to passport dates.
type DateLabels struct {
	Birth  []string `yaml:"birth" json:"birth"`
	Issue  []string `yaml:"issue" json:"issue"`
	Expiry []string `yaml:"expiry" json:"expiry"`
}

// PassportLabels are the printed labels next to passport fields.
type PassportLabels struct {
	Surname      []string   `yaml:"surname" json:"surname"`
	GivenNames   []string   `yaml:"given_names" json:"given_names"`
	Father       []string   `yaml:"father" json:"father"`
	PlaceOfBirth []string   `yaml:"place_of_birth" json:"place_of_birth"`
	Dates        DateLabels `yaml:"dates" json:"dates"`
}

// Rules holds the layout-specific word lists the extractors match against.
// They are tuned for Pakistani and Saudi documents and can be overridden
// from YAML.
type Rules struct {
	NameStopwords         []string       `yaml:"name_stopwords" json:"name_stopwords"`
	Countries             []Country      `yaml:"countries" json:"countries"`
	OCRReplacements       []Replacement  `yaml:"ocr_replacements" json:"ocr_replacements"`
	PresentBoundaries     []string       `yaml:"present_boundaries" json:"present_boundaries"`
	PermanentBoundaries   []string       `yaml:"permanent_boundaries" json:"permanent_boundaries"`
	PassportLabels        PassportLabels `yaml:"passport_labels" json:"passport_labels"`
	PassportNameStopwords []string       `yaml:"passport_name_stopwords" json:"passport_name_stopwords"`
	IqamaHeaders          []string       `yaml:"iqama_headers" json:"iqama_headers"`
	FuzzyLabelThreshold   float64        `yaml:"fuzzy_label_threshold" json:"fuzzy_label_threshold"`
}

// DefaultRules returns the built-in tables.
func DefaultRules() *Rules {
	return &Rules{
		NameStopwords: []string{
			"pakistan", "national", "identity", "card", "islamic", "republic",
			"gender", "country", "stay", "number", "birth", "issue", "expiry",
			"holder", "signature", "present", "permanent", "address",
			"registrar", "ordinance", "section",
		},
		Countries: []Country{
			{Match: "saudi arabia", Name: "Saudi Arabia"},
			{Match: "saudi", Name: "Saudi Arabia"},
			{Match: "pakistan", Name: "Pakistan"},
			{Match: "uae", Name: "UAE"},
			{Match: "kuwait", Name: "Kuwait"},
			{Match: "qatar", Name: "Qatar"},
		},
		OCRReplacements: []Replacement{
			{From: "@f", To: "of"},
			{From: "@", To: "a"},
			{From: "0f", To: "of", Whole: true},
			{From: "Expiny", To: "Expiry"},
			{From: "ol", To: "of", Whole: true},
			{From: "Vile", To: "Vide", Whole: true},
			{From: "RAKISTAN", To: "PAKISTAN"},
			{From: "{ree", To: "free"},
		},
		PresentBoundaries:   []string{`permanent\s+address`, `the\s+holder`, `registrar`, `visa`},
		PermanentBoundaries: []string{`the\s+holder`, `registrar`, `visa`, `issued`},
		PassportLabels: PassportLabels{
			Surname:      []string{"SURNAME"},
			GivenNames:   []string{"GIVEN NAMES", "GIVEN NAME", "GIVEN", "NAME"},
			Father:       []string{"FATHER NAME", "FATHER"},
			PlaceOfBirth: []string{"PLACE OF BIRTH", "BIRTH PLACE"},
			Dates: DateLabels{
				Birth:  []string{"DATE OF BIRTH", "BIRTH DATE", "DOB"},
				Issue:  []string{"DATE OF ISSUE", "ISSUE DATE", "ISSUED"},
				Expiry: []string{"DATE OF EXPIRY", "EXPIRY DATE", "EXPIRES", "VALID UNTIL"},
			},
		},
		PassportNameStopwords: []string{"PAKISTAN", "PAKISTANI", "PASSPORT"},
		IqamaHeaders:          []string{"KINGDOM OF SAUDI ARABIA", "MINISTRY OF INTERIOR", "RESIDENT IDENTITY"},
		FuzzyLabelThreshold:   80,
	}
}

// LoadRules reads a YAML file over the defaults. Lists present in the file
// replace the built-in list entirely.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: rules path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	r := DefaultRules()
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse rules %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules %s: %w", path, err)
	}
	return r, nil
}

// Validate checks that boundary patterns compile and the fuzzy threshold is
// on the 0-100 scale.
func (r *Rules) Validate() error {
	if r.FuzzyLabelThreshold < 0 || r.FuzzyLabelThreshold > 100 {
		return fmt.Errorf("fuzzy label threshold must be in [0,100], got %v", r.FuzzyLabelThreshold)
	}
	for _, list := range [][]string{r.PresentBoundaries, r.PermanentBoundaries} {
		if _, err := boundaryPattern(list); err != nil {
			return err
		}
	}
	for _, c := range r.Countries {
		if c.Match == "" || c.Name == "" {
			return errors.New("country entries need match and name")
		}
	}
	return nil
}

// CleanOCRText applies the replacement table to s in order.
func (r *Rules) CleanOCRText(s string) string {
	for _, rep := range r.OCRReplacements {
		if rep.From == "" {
			continue
		}
		if !rep.Whole {
			s = strings.ReplaceAll(s, rep.From, rep.To)
			continue
		}
		fields := strings.Fields(s)
		changed := false
		for i, f := range fields {
			if f == rep.From {
				fields[i] = rep.To
				changed = true
			}
		}
		if changed {
			s = strings.Join(fields, " ")
		}
	}
	return s
}
