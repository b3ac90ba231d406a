package extract

import (
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/MeKo-Tech/docverify/internal/dates"
	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/fuzzy"
)

// Passport holds the fields of a passport data page.
type Passport struct {
	Type              string   `json:"type"`
	CountryCode       string   `json:"country_code"`
	PassportNumber    string   `json:"passport_number"`
	Surname           string   `json:"surname"`
	GivenNames        string   `json:"given_names"`
	Nationality       string   `json:"nationality"`
	CitizenshipNumber string   `json:"citizenship_number"`
	Sex               string   `json:"sex"`
	DateOfBirth       string   `json:"date_of_birth"`
	PlaceOfBirth      string   `json:"place_of_birth"`
	FatherName        string   `json:"father_name"`
	DateOfIssue       string   `json:"date_of_issue"`
	DateOfExpiry      string   `json:"date_of_expiry"`
	IssuingAuthority  string   `json:"issuing_authority"`
	TrackingNumber    string   `json:"tracking_number"`
	BookletNumber     string   `json:"booklet_number"`
	MRZLines          []string `json:"mrz_lines"`
}

// DocumentType implements Record.
func (*Passport) DocumentType() DocumentType { return PassportType }

func newPassport() *Passport {
	return &Passport{
		Type: NotFound, CountryCode: NotFound, PassportNumber: NotFound, Surname: NotFound,
		GivenNames: NotFound, Nationality: NotFound, CitizenshipNumber: NotFound, Sex: NotFound,
		DateOfBirth: NotFound, PlaceOfBirth: NotFound, FatherName: NotFound, DateOfIssue: NotFound,
		DateOfExpiry: NotFound, IssuingAuthority: NotFound, TrackingNumber: NotFound,
		BookletNumber: NotFound, MRZLines: []string{},
	}
}

var (
	passportNumbers = []*regexp.Regexp{
		regexp.MustCompile(`\b([A-Z]{2,3}[0-9]{6,7})\b`),
		regexp.MustCompile(`\b([A-Z][0-9]{8})\b`),
	}
	citizenshipNumbers = []*regexp.Regexp{
		regexp.MustCompile(`(\d{5}[-\s]?\d{7}[-\s]?\d)`),
		regexp.MustCompile(`(\d{13})`),
	}
	bookletNumber  = regexp.MustCompile(`\b([A-Z][0-9]{7})\b`)
	trackingNumber = regexp.MustCompile(`\b(\d{11})\b`)
	passportDate   = regexp.MustCompile(`\b(\d{2}\s[A-Z]{3}\s\d{4})\b`)
	placeOfBirth   = regexp.MustCompile(`([A-Z\[\]]{3,}),\s*([A-Z]{3})`)

	bracketFix = strings.NewReplacer("[", "L", "]", "")
)

// passportLayouts are tried in order for DD MON YYYY values.
var passportLayouts = []string{"02 Jan 2006", "02 January 2006", "02/01/2006", "02-01-2006"}

// Minimum age, in years, of a passport holder's birth date.
const minHolderAge = 10

// Passport validity window in whole calendar years.
const (
	passportMinYears = 4
	passportMaxYears = 11
)

// PassportExtractor reads passport data pages. Now defaults to time.Now and
// bounds the plausible birth year.
type PassportExtractor struct {
	Rules *Rules
	Now   func() time.Time
}

// Extract implements Extractor.
func (e *PassportExtractor) Extract(set detection.Set) (Record, error) {
	rules := e.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}

	its := items(set)
	full := strings.ToUpper(joinTexts(its))
	rec := newPassport()

	for _, it := range its {
		if strings.HasPrefix(it.Text, "P<") || strings.Contains(it.Text, "<<") {
			rec.MRZLines = append(rec.MRZLines, it.Text)
		}
	}
	for _, re := range passportNumbers {
		if m := re.FindStringSubmatch(full); m != nil {
			rec.PassportNumber = m[1]
			break
		}
	}
	for _, re := range citizenshipNumbers {
		if m := re.FindStringSubmatch(full); m != nil {
			rec.CitizenshipNumber = m[1]
			if f, ok := FormatCNIC(m[1]); ok {
				rec.CitizenshipNumber = f
			}
			break
		}
	}
	if m := bookletNumber.FindStringSubmatch(full); m != nil {
		rec.BookletNumber = m[1]
	}
	if m := trackingNumber.FindStringSubmatch(full); m != nil {
		rec.TrackingNumber = m[1]
	}
	for _, it := range its {
		if s := strings.ToUpper(it.Text); s == "M" || s == "F" || s == "X" {
			rec.Sex = s
			break
		}
	}
	if strings.Contains(full, "PAK") {
		rec.Nationality = "PAKISTANI"
		rec.CountryCode = "PAK"
		rec.IssuingAuthority = "PAKISTAN"
	}
	for _, it := range its {
		if it.Text == "P" {
			rec.Type = "P"
			break
		}
	}

	labelledFields(rec, its, rules)
	mrzNames(rec)
	assignPassportDates(rec, passportDate.FindAllString(full, -1), now())
	fallbackPlaceOfBirth(rec, its, full)
	fallbackNames(rec, its, rules.PassportNameStopwords)
	fallbackFather(rec, its)
	return rec, nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// minFuzzyLabel is the shortest text compared against fuzzy labels. Single
// letters would otherwise partially match every label.
const minFuzzyLabel = 3

func bestScore(s string, labels []string) float64 {
	best := 0.0
	for _, l := range labels {
		best = max(best, fuzzy.PartialRatio(s, l))
	}
	return best
}

// labelledFields takes the line after each recognized label as its value.
// Later labels override earlier ones. A fuzzy label line belongs to the one
// field whose labels it matches best.
func labelledFields(rec *Passport, its []item, rules *Rules) {
	labels := rules.PassportLabels
	fuzzyFields := []struct {
		labels []string
		dst    *string
		date   bool
	}{
		{labels.PlaceOfBirth, &rec.PlaceOfBirth, false},
		{labels.Dates.Birth, &rec.DateOfBirth, true},
		{labels.Dates.Issue, &rec.DateOfIssue, true},
		{labels.Dates.Expiry, &rec.DateOfExpiry, true},
	}

	for i := 0; i+1 < len(its); i++ {
		text := strings.ToUpper(its[i].Text)
		next := its[i+1].Text

		surname := containsAny(text, labels.Surname)
		father := containsAny(text, labels.Father)
		if surname {
			rec.Surname = next
		}
		if !surname && !father && containsAny(text, labels.GivenNames) {
			rec.GivenNames = next
		}
		if father {
			rec.FatherName = next
		}

		if utf8.RuneCountInString(text) < minFuzzyLabel {
			continue
		}
		best, bestIdx := rules.FuzzyLabelThreshold, -1
		for j, f := range fuzzyFields {
			if sc := bestScore(text, f.labels); sc > best {
				best, bestIdx = sc, j
			}
		}
		if bestIdx < 0 {
			continue
		}
		f := fuzzyFields[bestIdx]
		if !f.date {
			*f.dst = next
			continue
		}
		if m := passportDate.FindString(strings.ToUpper(next)); m != "" {
			*f.dst = m
		}
	}
}

// mrzNames reads surname and given names from a P<PAK machine-readable line.
func mrzNames(rec *Passport) {
	if rec.Surname != NotFound && rec.GivenNames != NotFound {
		return
	}
	for _, line := range rec.MRZLines {
		if !strings.HasPrefix(line, "P<PAK") {
			continue
		}
		parts := strings.Split(line[5:], "<<")
		if len(parts) >= 2 {
			if rec.Surname == NotFound {
				rec.Surname = strings.TrimSpace(strings.ReplaceAll(parts[0], "<", " "))
			}
			if rec.GivenNames == NotFound {
				rec.GivenNames = strings.TrimSpace(strings.ReplaceAll(parts[1], "<", " "))
			}
		}
		return
	}
}

// ParsePassportDate parses a DD MON YYYY value in any letter case.
func ParsePassportDate(s string) (time.Time, bool) {
	return dates.ParseAny(dates.TitleMonth(s), passportLayouts)
}

// assignPassportDates fills the date slots the labels left open. The first
// date old enough is the birth date, the next later one the issue date, and
// the first after that within the validity window the expiry date.
func assignPassportDates(rec *Passport, found []string, now time.Time) {
	type dated struct {
		t time.Time
		s string
	}
	seen := map[string]bool{}
	var ds []dated
	for _, s := range found {
		if seen[s] {
			continue
		}
		seen[s] = true
		if t, ok := ParsePassportDate(s); ok {
			ds = append(ds, dated{t, s})
		}
	}
	sort.SliceStable(ds, func(i, j int) bool { return ds[i].t.Before(ds[j].t) })

	for _, d := range ds {
		if rec.DateOfBirth == NotFound && d.t.Year() >= 1900 && d.t.Year() <= now.Year()-minHolderAge {
			rec.DateOfBirth = d.s
			continue
		}
		if rec.DateOfBirth == NotFound {
			continue
		}
		dob, ok := ParsePassportDate(rec.DateOfBirth)
		if !ok || !d.t.After(dob) {
			continue
		}
		if rec.DateOfIssue == NotFound {
			rec.DateOfIssue = d.s
			continue
		}
		if rec.DateOfExpiry != NotFound {
			continue
		}
		if doi, ok := ParsePassportDate(rec.DateOfIssue); ok {
			if gap := d.t.Year() - doi.Year(); gap >= passportMinYears && gap <= passportMaxYears {
				rec.DateOfExpiry = d.s
			}
		}
	}
}

func isAlpha(s string) bool {
	return s != "" && !strings.ContainsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
}

func isUpperAlpha(s string) bool {
	return isAlpha(s) && !strings.ContainsFunc(s, unicode.IsLower)
}

// fallbackPlaceOfBirth looks for a "CITY, CCC" line, then the same shape
// anywhere in the text. OCR often reads L as "[".
func fallbackPlaceOfBirth(rec *Passport, its []item, full string) {
	if rec.PlaceOfBirth != NotFound {
		return
	}
	for _, it := range its {
		text := strings.ToUpper(it.Text)
		if !strings.Contains(text, ",") {
			continue
		}
		parts := strings.Split(text, ",")
		if len(parts) != 2 {
			continue
		}
		city := bracketFix.Replace(strings.TrimSpace(parts[0]))
		code := bracketFix.Replace(strings.TrimSpace(parts[1]))
		if utf8.RuneCountInString(code) == 3 && isUpperAlpha(code) && utf8.RuneCountInString(city) > 2 {
			rec.PlaceOfBirth = city + ", " + code
			return
		}
	}
	if m := placeOfBirth.FindStringSubmatch(full); m != nil {
		rec.PlaceOfBirth = bracketFix.Replace(m[1]) + ", " + m[2]
	}
}

// fallbackNames takes confident single-word lines as surname and given names.
func fallbackNames(rec *Passport, its []item, stopwords []string) {
	if rec.Surname != NotFound && rec.GivenNames != NotFound {
		return
	}
	var names []string
	for _, it := range its {
		n := utf8.RuneCountInString(it.Text)
		if isAlpha(it.Text) && n >= 2 && n <= 20 && it.Confidence > 0.6 && !slices.Contains(stopwords, it.Text) {
			names = append(names, it.Text)
		}
	}
	if len(names) < 2 {
		return
	}
	if rec.Surname == NotFound {
		rec.Surname = names[0]
	}
	if rec.GivenNames == NotFound {
		rec.GivenNames = strings.Join(names[1:min(3, len(names))], " ")
	}
}

// fallbackFather takes the first long confident line holding a
// comma-separated alphabetic part.
func fallbackFather(rec *Passport, its []item) {
	if rec.FatherName != NotFound {
		return
	}
	for _, it := range its {
		if !strings.Contains(it.Text, ",") || utf8.RuneCountInString(it.Text) <= 10 || it.Confidence <= 0.6 {
			continue
		}
		for _, part := range strings.Split(it.Text, ",") {
			if isAlpha(part) {
				rec.FatherName = it.Text
				return
			}
		}
	}
}
