package extract

import (
	"regexp"
	"strings"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/textnorm"
)

// DefaultLookahead is how many lines after a code line are scanned for its price.
const DefaultLookahead = 2

var reNoStockRaw = regexp.MustCompile(`(?i)\b(?:sin\s+stock|agotad[oa]s?|sin\s+existencias?|no\s+disponible)\b`)

// CodePattern recognizes the start of a product row. Group 1 must capture the code.
type CodePattern struct {
	Name string
	Re   *regexp.Regexp
}

// ProfileExtractor scans lines for code starts and resolves each code's price
// within a short lookahead window.
type ProfileExtractor struct {
	Profile      constants.Profile
	CodePatterns []CodePattern
	Lookahead    int
	// Enrich fills profile-specific fields after the base record is built.
	Enrich func(rec *entity.RawRecord)
}

type codeHit struct {
	code       string
	start, end int
}

func (p *ProfileExtractor) matchCode(line string) (codeHit, bool) {
	for _, cp := range p.CodePatterns {
		loc := cp.Re.FindStringSubmatchIndex(line)
		if loc == nil || loc[2] < 0 {
			continue
		}
		return codeHit{code: line[loc[2]:loc[3]], start: loc[2], end: loc[3]}, true
	}
	return codeHit{}, false
}

// Extract implements Extractor.
func (p *ProfileExtractor) Extract(text string) []entity.RawRecord {
	lookahead := p.Lookahead
	if lookahead < 0 {
		lookahead = 0
	}
	lines := strings.Split(textnorm.Clean(text), "\n")

	var out []entity.RawRecord
	for i := 0; i < len(lines); i++ {
		hit, ok := p.matchCode(lines[i])
		if !ok {
			continue
		}

		first := lines[i][:hit.start] + " " + lines[i][hit.end:]
		scanned := []string{first}
		price, found := FindPrice(first)
		last := i
		for j := i + 1; !found && j <= i+lookahead && j < len(lines); j++ {
			if _, next := p.matchCode(lines[j]); next {
				break
			}
			scanned = append(scanned, lines[j])
			last = j
			price, found = FindPrice(lines[j])
		}

		joined := strings.Join(scanned, " ")
		noStock := reNoStockRaw.MatchString(joined)
		if !found && !noStock {
			continue
		}

		rec := entity.RawRecord{Code: hit.code, Price: 0, NoStock: noStock}
		desc := joined
		if found {
			rec.Price = price.Amount
			desc = removeOnce(desc, price.Token)
		}
		desc = reNoStockRaw.ReplaceAllString(desc, " ")
		rec.Description = trimDescription(desc)
		if p.Enrich != nil {
			p.Enrich(&rec)
		}
		out = append(out, rec)
		i = last
	}
	return out
}

func trimDescription(s string) string {
	return strings.Trim(textnorm.CollapseSpaces(s), " -|:;,")
}
