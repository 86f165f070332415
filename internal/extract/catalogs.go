package extract

import (
	"regexp"
	"strings"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/entity"
)

var rePackContent = regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s?(?:ml|cc|lts?|litros?|kg|grs?)\b(?:\s*x\s*\d+)?`)

// BatteryCatalog reads battery price lists: "12-45 12x45 D 38 56 350 Clio ... $ 66.791".
func BatteryCatalog() *ProfileExtractor {
	return &ProfileExtractor{
		Profile:   constants.ProfileBatteryCatalog,
		Lookahead: DefaultLookahead,
		CodePatterns: []CodePattern{
			{Name: "numeric_dash", Re: regexp.MustCompile(`^\s*(\d{1,3}-\d{2,3}[A-Za-z]{0,2})(?:\s|$)`)},
			{Name: "alpha_numeric", Re: regexp.MustCompile(`^\s*([A-Z]{1,3}\d{2,4}[A-Z]{0,3})(?:\s|$)`)},
		},
	}
}

// AdditiveCatalog reads additive and lubricant lists, where rows start with
// "AD-1020" style codes or fixed-width numeric codes and usually carry a pack size.
func AdditiveCatalog() *ProfileExtractor {
	return &ProfileExtractor{
		Profile:   constants.ProfileAdditiveCatalog,
		Lookahead: DefaultLookahead,
		CodePatterns: []CodePattern{
			{Name: "alpha_dash", Re: regexp.MustCompile(`^\s*([A-Za-z]{2,5}-\d{2,6}[A-Za-z]?)(?:\s|$)`)},
			{Name: "fixed_numeric", Re: regexp.MustCompile(`^\s*(\d{5,6})(?:\s|$)`)},
		},
		Enrich: func(rec *entity.RawRecord) {
			if m := rePackContent.FindString(rec.Description); m != "" {
				rec.Content = strings.TrimSpace(m)
			}
		},
	}
}

// ForProfile returns the pattern extractor registered for p. Generic has none.
func ForProfile(p constants.Profile) (Extractor, bool) {
	switch p {
	case constants.ProfileBatteryCatalog:
		return BatteryCatalog(), true
	case constants.ProfileAdditiveCatalog:
		return AdditiveCatalog(), true
	default:
		return nil, false
	}
}
