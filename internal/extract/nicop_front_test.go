package extract

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/utils"
)

// line places a detection on row i of a synthetic card.
func line(i int, text string, conf float64) detection.Detection {
	y := float64(i) * 30
	return detection.Detection{
		Box:        detection.QuadFromBox(utils.NewBox(10, y, 300, y+20)),
		Text:       text,
		Confidence: conf,
	}
}

// lines builds a top-to-bottom detection set with confident texts.
func lines(texts ...string) detection.Set {
	set := make(detection.Set, len(texts))
	for i, t := range texts {
		set[i] = line(i, t, 0.9)
	}
	return set
}

func extractFront(t *testing.T, set detection.Set) *NICOPFront {
	t.Helper()
	rec, err := (&NICOPFrontExtractor{}).Extract(set)
	require.NoError(t, err)
	front, ok := rec.(*NICOPFront)
	require.True(t, ok)
	return front
}

func TestNICOPFront_Smoke(t *testing.T) {
	set := lines("ISLAMIC REPUBLIC OF PAKISTAN", "MUHAMMAD ALI", "12345-1234567-1", "01.01.1990", "01.01.2010")
	// Confidence order must not matter; rows are re-derived from the boxes.
	set = set.Clone().SortByConfidence()
	set[0], set[4] = set[4], set[0]

	rec := extractFront(t, set)
	assert.Equal(t, "12345-1234567-1", rec.CNICNumber)
	assert.Equal(t, "01.01.1990", rec.DateOfBirth)
	assert.Equal(t, "MUHAMMAD ALI", rec.Name)
	assert.Equal(t, "Pakistan", rec.Country)
	assert.Equal(t, NICOPFrontType, rec.DocumentType())
}

func TestNICOPFront_DateRoles(t *testing.T) {
	tests := []struct {
		name                 string
		texts                []string
		birth, issue, expiry string
	}{
		{"single date", []string{"01.01.1990"}, "01.01.1990", NotFound, NotFound},
		{"gap outside validity", []string{"01.01.1990", "01.01.2010"}, "01.01.1990", "01.01.2010", NotFound},
		{"ten years apart", []string{"01.01.1990", "01.01.2000"}, "01.01.1990", "01.01.1990", "01.01.2000"},
		{"three dates", []string{"15.06.2030", "15.06.2020", "02.03.1985"}, "02.03.1985", "15.06.2020", "15.06.2030"},
		{"four dates use last as expiry", []string{"02.03.1985", "15.06.2020", "01.01.2022", "15.06.2030"}, "02.03.1985", "15.06.2020", "15.06.2030"},
		{"duplicates collapse", []string{"01.01.1990", "01.01.1990"}, "01.01.1990", NotFound, NotFound},
		{"invalid calendar date dropped", []string{"31.02.1990", "05.05.1991"}, "05.05.1991", NotFound, NotFound},
		{"mixed separators", []string{"1-2-1990", "3/4/2015", "03,04.2025"}, "01.02.1990", "03.04.2015", "03.04.2025"},
		{"bare eight digits", []string{"15031990"}, "15.03.1990", NotFound, NotFound},
		{"no dates", []string{"NATIONAL IDENTITY CARD"}, NotFound, NotFound, NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := extractFront(t, lines(tt.texts...))
			assert.Equal(t, tt.birth, rec.DateOfBirth)
			assert.Equal(t, tt.issue, rec.DateOfIssue)
			assert.Equal(t, tt.expiry, rec.DateOfExpiry)
		})
	}
}

func TestCardDates(t *testing.T) {
	got := CardDates("Date of Birth 01.01.1990 Issue 01.01 2010 and 5.5.2012")
	assert.Equal(t, []string{"01.01.1990", "05.05.2012"}, got, "a space before the second separator is not a date")
	assert.Empty(t, CardDates(""))
}

func TestNICOPFront_Gender(t *testing.T) {
	tests := []struct {
		text, want string
	}{
		{"MALE", "M"},
		{"male", "M"},
		{" m ", "M"},
		{"FEMALE", "F"},
		{"f", "F"},
		{"Gender", NotFound},
		{"MALES", NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			rec := extractFront(t, lines("Gender", tt.text))
			assert.Equal(t, tt.want, rec.Gender)
		})
	}
}

func TestNICOPFront_Country(t *testing.T) {
	assert.Equal(t, "Saudi Arabia", extractFront(t, lines("Country of Stay", "Kingdom of SAUDI ARABIA")).Country)
	assert.Equal(t, "UAE", extractFront(t, lines("Country of Stay", "uae")).Country)
	assert.Equal(t, NotFound, extractFront(t, lines("Country of Stay", "Oman")).Country)

	rules := DefaultRules()
	rules.Countries = []Country{{Match: "oman", Name: "Oman"}}
	rec, err := (&NICOPFrontExtractor{Rules: rules}).Extract(lines("Oman"))
	require.NoError(t, err)
	assert.Equal(t, "Oman", rec.(*NICOPFront).Country)
}

func TestNICOPFront_Names(t *testing.T) {
	t.Run("labelled", func(t *testing.T) {
		rec := extractFront(t, lines("Name:", "Muhammad Ali", "Father Name:", "Ahmed Khan"))
		assert.Equal(t, "Muhammad Ali", rec.Name)
		assert.Equal(t, "Ahmed Khan", rec.FatherName)
	})
	t.Run("father label first", func(t *testing.T) {
		rec := extractFront(t, lines("Father Name:", "Ahmed Khan", "Name:", "Muhammad Ali"))
		assert.Equal(t, "Muhammad Ali", rec.Name)
		assert.Equal(t, "Ahmed Khan", rec.FatherName)
	})
	t.Run("second name label goes to father", func(t *testing.T) {
		rec := extractFront(t, lines("Name:", "Muhammad Ali", "Name:", "Ahmed Khan"))
		assert.Equal(t, "Ahmed Khan", rec.FatherName)
	})
	t.Run("unlabelled fill in order", func(t *testing.T) {
		rec := extractFront(t, lines("Muhammad Ali", "Ahmed Khan", "Third Person"))
		assert.Equal(t, "Muhammad Ali", rec.Name)
		assert.Equal(t, "Ahmed Khan", rec.FatherName)
	})
	t.Run("low confidence lines ignored", func(t *testing.T) {
		set := detection.Set{line(0, "Name:", 0.9), line(1, "Muhammad Ali", 0.3)}
		assert.Equal(t, NotFound, extractFront(t, set).Name)
	})
}

func TestIsNameCandidate(t *testing.T) {
	stop := DefaultRules().NameStopwords
	tests := []struct {
		text string
		want bool
	}{
		{"Muhammad Ali", true},
		{"Abdul-Rehman O'Neil", true},
		{"Ali", false},
		{"Al B", false},
		{"muhammad Ali", false},
		{"Muhammad Ali 2", false},
		{"Identity Card", false},
		{"Holder Signature", false},
		{"Ali Khan:", false},
		{"Ali ' Khan", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, isNameCandidate(tt.text, stop))
		})
	}
}

func TestNICOPFront_Sentinels(t *testing.T) {
	for _, set := range []detection.Set{nil, lines("")} {
		rec := extractFront(t, set)
		assert.Equal(t, newNICOPFront(), rec)
	}
}

func TestFindCNIC(t *testing.T) {
	tests := []struct {
		text, want string
		ok         bool
	}{
		{"CNIC 12345-1234567-1", "12345-1234567-1", true},
		{"12345 1234567 1", "12345-1234567-1", true},
		{"1234512345671", "12345-1234567-1", true},
		{"no. 12345.1234567.1 issued", "12345-1234567-1", true},
		{"1234-1234567-1", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := findCNIC(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatCNIC_Properties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	digits := gen.SliceOfN(CNICDigits, gen.IntRange(0, 9)).Map(func(ds []int) string {
		var b strings.Builder
		for _, d := range ds {
			b.WriteByte(byte('0' + d))
		}
		return b.String()
	})

	properties.Property("formats as 5-7-1", prop.ForAll(func(d string) bool {
		got, ok := FormatCNIC(d)
		return ok && got == d[0:5]+"-"+d[5:12]+"-"+d[12:]
	}, digits))

	properties.Property("stripping separators recovers the digits", prop.ForAll(func(d string) bool {
		got, ok := FormatCNIC(d)
		return ok && Digits(got) == d
	}, digits))

	properties.Property("formatting is idempotent", prop.ForAll(func(d string) bool {
		once, _ := FormatCNIC(d)
		twice, ok := FormatCNIC(once)
		return ok && once == twice
	}, digits))

	properties.TestingRun(t)
}
