package extract

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/MeKo-Tech/docverify/internal/dates"
	"github.com/MeKo-Tech/docverify/internal/detection"
)

// NICOPFront holds the fields printed on the front of a NICOP/CNIC card.
type NICOPFront struct {
	Name         string `json:"name"`
	FatherName   string `json:"father_name"`
	Gender       string `json:"gender"`
	Country      string `json:"country"`
	CNICNumber   string `json:"cnic_number"`
	DateOfBirth  string `json:"date_of_birth"`
	DateOfIssue  string `json:"date_of_issue"`
	DateOfExpiry string `json:"date_of_expiry"`
}

// DocumentType implements Record.
func (*NICOPFront) DocumentType() DocumentType { return NICOPFrontType }

func newNICOPFront() *NICOPFront {
	return &NICOPFront{
		Name: NotFound, FatherName: NotFound, Gender: NotFound, Country: NotFound,
		CNICNumber: NotFound, DateOfBirth: NotFound, DateOfIssue: NotFound, DateOfExpiry: NotFound,
	}
}

// Card validity window in years. Two dates this far apart are read as an
// issue/expiry pair.
const (
	validityMinYears = 9
	validityMaxYears = 11
)

var cardDate = regexp.MustCompile(`(\d{1,2})[.\-/, ]+(\d{1,2})[.\-/,]+(\d{4})|(\d{8})`)

// NICOPFrontExtractor reads NICOP/CNIC front sides.
type NICOPFrontExtractor struct {
	Rules *Rules
}

// Extract implements Extractor.
func (e *NICOPFrontExtractor) Extract(set detection.Set) (Record, error) {
	rules := e.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	its := items(set)
	full := joinTexts(its)
	rec := newNICOPFront()

	if cnic, ok := findCNIC(full); ok {
		rec.CNICNumber = cnic
	}
	assignCardDates(rec, CardDates(full))
	rec.Gender = orNotFound(findGender(its))

	lower := strings.ToLower(full)
	for _, c := range rules.Countries {
		if strings.Contains(lower, strings.ToLower(c.Match)) {
			rec.Country = c.Name
			break
		}
	}

	assignNames(rec, its, rules.NameStopwords)
	return rec, nil
}

// CardDates returns every valid dd.mm.yyyy date in text, deduplicated in
// first-seen order and then sorted chronologically.
func CardDates(text string) []string {
	seen := map[string]bool{}
	var found []string
	for _, m := range cardDate.FindAllStringSubmatch(text, -1) {
		var s string
		var ok bool
		if m[4] != "" {
			s, ok = dates.Normalize(m[4][:2], m[4][2:4], m[4][4:])
		} else {
			s, ok = dates.Normalize(m[1], m[2], m[3])
		}
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		found = append(found, s)
	}
	sort.SliceStable(found, func(i, j int) bool {
		return parseDotted(found[i]).Before(parseDotted(found[j]))
	})
	return found
}

func parseDotted(s string) time.Time {
	t, _ := time.Parse(dates.LayoutDotted, s)
	return t
}

func withinValidity(a, b string) bool {
	gap := dates.YearsBetween(parseDotted(a), parseDotted(b))
	return gap >= validityMinYears && gap <= validityMaxYears
}

// assignCardDates gives the sorted dates their roles. With two dates inside
// the validity window the earlier one is both birth and issue date; the
// record keeps that reading so stored results stay comparable.
func assignCardDates(rec *NICOPFront, ds []string) {
	switch {
	case len(ds) == 1:
		rec.DateOfBirth = ds[0]
	case len(ds) == 2:
		rec.DateOfBirth = ds[0]
		if withinValidity(ds[0], ds[1]) {
			rec.DateOfIssue = ds[0]
			rec.DateOfExpiry = ds[1]
		} else {
			rec.DateOfIssue = ds[1]
		}
	case len(ds) >= 3:
		rec.DateOfBirth = ds[0]
		rec.DateOfIssue = ds[1]
		rec.DateOfExpiry = ds[len(ds)-1]
	}
}

func findGender(its []item) string {
	for _, it := range its {
		switch strings.ToUpper(strings.TrimSpace(it.Text)) {
		case "M", "MALE":
			return "M"
		case "F", "FEMALE":
			return "F"
		}
	}
	return ""
}

// assignNames fills name and father name from title-cased multi-word lines,
// using the line above each candidate as its label.
func assignNames(rec *NICOPFront, its []item, stopwords []string) {
	nameFound, fatherFound := false, false
	for i, it := range its {
		if !isNameCandidate(it.Text, stopwords) {
			continue
		}
		var context string
		if i > 0 {
			context = strings.ToLower(its[i-1].Text)
		}
		hasName := strings.Contains(context, "name")
		hasFather := strings.Contains(context, "father")
		switch {
		case hasName && !hasFather && !nameFound:
			rec.Name, nameFound = it.Text, true
		case (hasFather || (hasName && nameFound)) && !fatherFound:
			rec.FatherName, fatherFound = it.Text, true
		case !nameFound:
			rec.Name, nameFound = it.Text, true
		case !fatherFound:
			rec.FatherName, fatherFound = it.Text, true
		}
	}
}

func isNameCandidate(text string, stopwords []string) bool {
	if strings.ContainsFunc(text, unicode.IsDigit) {
		return false
	}
	lower := strings.ToLower(text)
	for _, w := range stopwords {
		if strings.Contains(lower, strings.ToLower(w)) {
			return false
		}
	}
	words := strings.Fields(text)
	if len(words) < 2 || utf8.RuneCountInString(text) <= 4 {
		return false
	}
	for _, w := range words {
		letters := strings.NewReplacer("'", "", "-", "").Replace(w)
		if letters == "" || strings.ContainsFunc(letters, func(r rune) bool { return !unicode.IsLetter(r) }) {
			return false
		}
		if !unicode.IsUpper([]rune(w)[0]) {
			return false
		}
	}
	return true
}
