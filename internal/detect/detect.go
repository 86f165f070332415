// Package detect classifies a price list into a named profile.
package detect

import (
	"regexp"
	"strings"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/textnorm"
)

// Predicate tests folded (lower-cased, accent-free) text and filename.
type Predicate func(text, filename string) bool

// Rule pairs a profile with the predicate that selects it.
type Rule struct {
	Profile constants.Profile
	Match   Predicate
}

var (
	// "12-45 ... $ 66.791": numeric-dash code, then a currency amount later on the line.
	reBatteryRow = regexp.MustCompile(`(?m)^\s*\d{1,3}-\d{2,3}[a-z]?\s.*\$\s*\d`)
	// "350 ml", "1 lt", "500cc x 12"
	rePackSize = regexp.MustCompile(`\b\d+(?:[.,]\d+)?\s?(?:ml|cc|lts?|litros?|kg|grs?)\b`)

	batteryTokens  = []string{"bateria", "amper", "borne", " cca", "12v", "acumulador"}
	additiveTokens = []string{"aditivo", "lubricante", "refrigerante", "liquido de frenos", "limpia", "desengrasante"}
)

// Rules is the detection order. The first rule that matches wins, so
// more specific profiles go first; generic is implied when nothing matches.
var Rules = []Rule{
	{Profile: constants.ProfileBatteryCatalog, Match: isBatteryCatalog},
	{Profile: constants.ProfileAdditiveCatalog, Match: isAdditiveCatalog},
}

// Detect returns the profile for text and an optional filename hint. It never fails.
func Detect(text, filenameHint string) constants.Profile {
	return DetectWith(Rules, text, filenameHint)
}

// DetectWith runs a caller supplied rule list.
func DetectWith(rules []Rule, text, filenameHint string) constants.Profile {
	ft := textnorm.Fold(text)
	ff := textnorm.Fold(filenameHint)
	for _, r := range rules {
		if r.Match(ft, ff) {
			return r.Profile
		}
	}
	return constants.ProfileGeneric
}

func isBatteryCatalog(text, filename string) bool {
	if containsAny(filename, "sermat", "bateria", "battery") {
		return true
	}
	if reBatteryRow.MatchString(text) {
		return true
	}
	return countTokens(text, batteryTokens) >= 2
}

func isAdditiveCatalog(text, filename string) bool {
	if containsAny(filename, "aditivo", "additive", "lubric") {
		return true
	}
	n := countTokens(text, additiveTokens)
	if n >= 2 {
		return true
	}
	return n == 1 && rePackSize.MatchString(text)
}

func containsAny(s string, subs ...string) bool {
	if s == "" {
		return false
	}
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func countTokens(s string, tokens []string) int {
	n := 0
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			n++
		}
	}
	return n
}
