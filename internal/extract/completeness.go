package extract

import (
	"fmt"
	"slices"
	"strings"
)

// Nationality of an applicant, which decides the documents they must upload.
type Nationality string

// Supported nationalities.
const (
	Pakistani Nationality = "pakistani"
	Saudi     Nationality = "saudi"
)

var requiredDocuments = map[Nationality][]DocumentType{
	Pakistani: {PassportType, IqamaType, NICOPFrontType, NICOPBackType},
	Saudi:     {SaudiNationalIDType},
}

// ParseNationality accepts the nationality names used by applicants.
func ParseNationality(s string) (Nationality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pakistani", "pakistan", "pk":
		return Pakistani, nil
	case "saudi", "saudi arabia", "saudi arabian", "sa":
		return Saudi, nil
	default:
		return "", fmt.Errorf("unsupported nationality %q", s)
	}
}

// RequiredDocuments lists the documents an applicant of n must upload.
func RequiredDocuments(n Nationality) ([]DocumentType, error) {
	docs, ok := requiredDocuments[n]
	if !ok {
		return nil, fmt.Errorf("unsupported nationality %q", n)
	}
	return slices.Clone(docs), nil
}

// MissingDocuments returns the required documents not in uploaded, in the
// required order. The result is empty when the application is complete.
func MissingDocuments(n Nationality, uploaded []DocumentType) ([]DocumentType, error) {
	required, err := RequiredDocuments(n)
	if err != nil {
		return nil, err
	}
	missing := []DocumentType{}
	for _, d := range required {
		if !slices.Contains(uploaded, d) {
			missing = append(missing, d)
		}
	}
	return missing, nil
}
