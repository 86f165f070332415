package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/normalize"
	"github.com/ralborta/pdf-microservice/internal/textnorm"
)

// DefaultMinPrice filters numeric false positives such as page numbers.
const DefaultMinPrice = 100.0

const (
	codeExpr   = `([A-Za-z0-9][\w\-./]{0,24})`
	amountExpr = `(\d[\d.,]*\d|\d)`
	currExpr   = `(?:\bu\$s|\busd|\bars|\$)`
)

// RowGrammar is one profile-agnostic row shape. Groups: code, description, amount.
type RowGrammar struct {
	Name string
	Re   *regexp.Regexp
}

// DefaultGrammars is tried in order; the first one producing any record wins the whole document.
var DefaultGrammars = []RowGrammar{
	{Name: "pipe", Re: regexp.MustCompile(`(?i)^\s*\|?\s*` + codeExpr + `\s*\|(.+)\|\s*(?:` + currExpr + `\s*)?` + amountExpr + `\s*\|?\s*$`)},
	{Name: "tab", Re: regexp.MustCompile(`(?i)^\s*` + codeExpr + `\t+(.+)\t+(?:` + currExpr + `\s*)?` + amountExpr + `\s*$`)},
	{Name: "space_run", Re: regexp.MustCompile(`(?i)^\s*` + codeExpr + ` {2,}(.+?) {2,}(?:` + currExpr + `\s*)?` + amountExpr + `\s*$`)},
	{Name: "currency", Re: regexp.MustCompile(`(?i)^\s*` + codeExpr + `\s+(.+?)\s+` + currExpr + `\s*` + amountExpr + `\s*$`)},
}

// Generic is the profile-agnostic fallback extractor.
type Generic struct {
	Grammars []RowGrammar
	MinPrice float64
}

// NewGeneric builds the fallback with the default grammars. minPrice < 0 selects DefaultMinPrice.
func NewGeneric(minPrice float64) *Generic {
	if minPrice < 0 {
		minPrice = DefaultMinPrice
	}
	return &Generic{Grammars: DefaultGrammars, MinPrice: minPrice}
}

// Extract implements Extractor. Grammars are never mixed within one document.
func (g *Generic) Extract(text string) []entity.RawRecord {
	lines := strings.Split(textnorm.Clean(text), "\n")
	for _, gr := range g.Grammars {
		if recs := g.apply(gr, lines); len(recs) > 0 {
			return recs
		}
	}
	return nil
}

func (g *Generic) apply(gr RowGrammar, lines []string) []entity.RawRecord {
	var out []entity.RawRecord
	for _, line := range lines {
		m := gr.Re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		code, desc, amount := m[1], m[2], m[3]
		if !strings.ContainsFunc(code, unicode.IsDigit) || !strings.ContainsFunc(desc, unicode.IsLetter) {
			continue
		}
		price, ok := normalize.ParsePriceString(amount)
		if !ok || price < g.MinPrice {
			continue
		}
		desc = strings.NewReplacer("|", " ", "\t", " ").Replace(desc)
		noStock := reNoStockRaw.MatchString(desc)
		out = append(out, entity.RawRecord{
			Code:        code,
			Description: trimDescription(reNoStockRaw.ReplaceAllString(desc, " ")),
			Price:       amount,
			NoStock:     noStock,
		})
	}
	return out
}
