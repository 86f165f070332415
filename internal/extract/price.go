package extract

import (
	"regexp"
	"strings"
)

// Currency marker, then digit groups with optional separators. The last
// group may be a one or two digit decimal part; normalize.ParsePriceString decides.
var rePriceToken = regexp.MustCompile(`(?i)(?:\bu\$s|\busd|\bars|\$)\s*(\d[\d.,]*\d|\d)`)

// PriceMatch is a currency-marked amount found in a line.
type PriceMatch struct {
	Token  string // full match, marker included
	Amount string // numeric part only
}

// FindPrice returns the first currency-marked amount in line.
func FindPrice(line string) (PriceMatch, bool) {
	m := rePriceToken.FindStringSubmatch(line)
	if m == nil {
		return PriceMatch{}, false
	}
	return PriceMatch{Token: m[0], Amount: m[1]}, true
}

// removeOnce deletes the first occurrence of tok from s.
func removeOnce(s, tok string) string {
	if tok == "" {
		return s
	}
	return strings.Replace(s, tok, " ", 1)
}
