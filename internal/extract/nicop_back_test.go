package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docverify/internal/detection"
)

func extractBack(t *testing.T, set detection.Set) *NICOPBack {
	t.Helper()
	rec, err := (&NICOPBackExtractor{}).Extract(set)
	require.NoError(t, err)
	back, ok := rec.(*NICOPBack)
	require.True(t, ok)
	return back
}

func TestNICOPBack(t *testing.T) {
	tests := []struct {
		name               string
		texts              []string
		present, permanent string
	}{
		{
			name: "both addresses",
			texts: []string{
				"PRESENT ADDRESS:", "H.No. 12 Street 5 Lahore",
				"Permanent Address", "Village Chak 7 Faisalabad 12345678901",
				"The holder of this card",
			},
			present:   "H.No. 12 Street 5 Lahore",
			permanent: "Village Chak 7 Faisalabad",
		},
		{
			name:      "runs to end of text",
			texts:     []string{"Present Address", "House 4   Block B", "Karachi"},
			present:   "House 4 Block B Karachi",
			permanent: NotFound,
		},
		{
			name:      "leading id number stripped",
			texts:     []string{"Present Address: 12345-1234567-1 House 4 Karachi", "Registrar General"},
			present:   "House 4 Karachi",
			permanent: NotFound,
		},
		{
			name:      "values keep the raw text",
			texts:     []string{"Permanent Address", "Mohalla @bad Colony", "lssued by NADRA"},
			present:   NotFound,
			permanent: "Mohalla @bad Colony lssued by NADRA",
		},
		{
			name: "misread label found via replacements",
			texts: []string{
				"Present @ddress", "Flat@12 Block ol Phase 2 Lahore",
				"Permanent Address", "House ol Mr Ali, Expiny Road Multan",
				"The holder of this card",
			},
			present:   "Flat@12 Block ol Phase 2 Lahore",
			permanent: "House ol Mr Ali, Expiny Road Multan",
		},
		{
			name:      "empty value",
			texts:     []string{"Present Address", "Permanent Address"},
			present:   NotFound,
			permanent: NotFound,
		},
		{
			name:      "no labels",
			texts:     []string{"Registrar General of Pakistan"},
			present:   NotFound,
			permanent: NotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := extractBack(t, lines(tt.texts...))
			assert.Equal(t, tt.present, rec.PresentAddress)
			assert.Equal(t, tt.permanent, rec.PermanentAddress)
			assert.Equal(t, NICOPBackType, rec.DocumentType())
		})
	}
}

func TestCleanAddress(t *testing.T) {
	assert.Equal(t, "House 1 Lahore", CleanAddress("  12345 1234567 1 House 1\n Lahore ; 0300123456789"))
	assert.Equal(t, "Street 12345", CleanAddress("Street 12345"))
	assert.Equal(t, "", CleanAddress("  "))
}

func TestNICOPBack_BadBoundary(t *testing.T) {
	rules := DefaultRules()
	rules.PresentBoundaries = []string{"("}
	_, err := (&NICOPBackExtractor{Rules: rules}).Extract(lines("Present Address x"))
	assert.Error(t, err)
}

func TestNICOPBack_LengthChangingReplacement(t *testing.T) {
	rules := DefaultRules()
	rules.OCRReplacements = append(rules.OCRReplacements, Replacement{From: "Adres", To: "Address", Whole: true})
	rec, err := (&NICOPBackExtractor{Rules: rules}).Extract(lines(
		"Present Adres", "Flat 9 Adres Lane Quetta", "Registrar",
	))
	require.NoError(t, err)
	assert.Equal(t, "Flat 9 Adres Lane Quetta", rec.(*NICOPBack).PresentAddress)
}
