// Package normalize turns raw extractor output into canonical product records.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/textnorm"
)

var reNoStock = regexp.MustCompile(`\b(?:sin\s+stock|agotad[oa]s?|sin\s+existencias?|no\s+disponible)\b`)

// HasNoStockMarker reports an explicit out-of-stock phrase in s.
func HasNoStockMarker(s string) bool {
	return reNoStock.MatchString(textnorm.Fold(s))
}

// Normalize is total: every input yields a well-formed record, which may still fail Valid.
func Normalize(raw entity.RawRecord) entity.ProductRecord {
	code := strings.ToUpper(textnorm.CollapseSpaces(raw.Code))
	desc := textnorm.CollapseSpaces(raw.Description)
	if desc == "" {
		desc = placeholderDescription(code)
	}

	noStock := raw.NoStock
	if s, ok := raw.Stock.(string); ok && HasNoStockMarker(s) {
		noStock = true
	}

	return entity.ProductRecord{
		Code:        code,
		Description: desc,
		Price:       ParsePrice(raw.Price),
		Stock:       ParseStock(raw.Stock, noStock),
		Unit:        orDefault(strings.ToUpper(textnorm.CollapseSpaces(raw.Unit)), constants.DefaultUnit),
		Category:    orDefault(textnorm.CollapseSpaces(raw.Category), constants.DefaultCategory),
		Application: textnorm.CollapseSpaces(raw.Application),
		Content:     textnorm.CollapseSpaces(raw.Content),
	}
}

// ParseStock floors numbers and reads digits out of strings. Missing or unreadable
// stock means "unknown" and maps to DefaultStock; noStock forces 0. Values past the
// int range saturate at math.MaxInt.
func ParseStock(v any, noStock bool) int {
	if noStock {
		return 0
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, t)
		n, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return constants.DefaultStock
		}
		f = n
	default:
		return constants.DefaultStock
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return constants.DefaultStock
	}
	if f < 0 {
		return 0
	}
	if f >= float64(math.MaxInt) {
		return math.MaxInt
	}
	return int(math.Floor(f))
}

// Valid is the gate applied after normalization; failing records are dropped.
func Valid(r entity.ProductRecord) bool {
	return r.Code != "" && r.Price >= 0 && r.Stock >= 0
}

// NormalizeAll normalizes raws and drops the records that fail Valid.
func NormalizeAll(raws []entity.RawRecord) []entity.ProductRecord {
	out := make([]entity.ProductRecord, 0, len(raws))
	for _, raw := range raws {
		rec := Normalize(raw)
		if !Valid(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// ToRaw turns a canonical record back into raw form, e.g. to feed it through Normalize again.
func ToRaw(r entity.ProductRecord) entity.RawRecord {
	return entity.RawRecord{
		Code:        r.Code,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Unit:        r.Unit,
		Category:    r.Category,
		Application: r.Application,
		Content:     r.Content,
	}
}

func placeholderDescription(code string) string {
	if code == "" {
		return "Producto sin descripcion"
	}
	return "Producto " + code
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
