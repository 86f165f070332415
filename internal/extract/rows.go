package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/normalize"
	"github.com/ralborta/pdf-microservice/internal/textnorm"
)

// headerScanRows bounds how far down a sheet the header row is searched for.
const headerScanRows = 10

// A price cell holds one amount and nothing else. Dates, years inside titles and
// free text never match.
var rePriceCell = regexp.MustCompile(`(?i)^\s*(?:\$|u\$s|usd|ars)?\s*(\d[\d.,]*)\s*$`)

type field int

const (
	fieldCode field = iota
	fieldDescription
	fieldPrice
	fieldStock
	fieldUnit
	fieldCategory
	fieldApplication
	fieldContent
)

// ColumnAliases lists accepted header names per field, in priority order.
// Headers are compared after folding (lower case, no accents, single spaces).
var ColumnAliases = []struct {
	Field   field
	Aliases []string
}{
	{fieldCode, []string{"codigo", "codigo bateria", "cod", "cod.", "articulo", "sku", "code"}},
	{fieldDescription, []string{"descripcion", "producto", "detalle", "tipo", "description"}},
	{fieldPrice, []string{"precio", "precio de lista", "precio lista", "price", "importe", "p. lista"}},
	{fieldStock, []string{"stock", "existencia", "disponible", "cantidad"}},
	{fieldUnit, []string{"unidad", "um", "u.m.", "unit"}},
	{fieldCategory, []string{"categoria", "rubro", "familia", "category"}},
	{fieldApplication, []string{"aplicacion", "aplicaciones", "vehiculo", "modelo"}},
	{fieldContent, []string{"contenido", "presentacion", "envase"}},
}

// NormalizeColumnName folds a header cell for alias comparison.
func NormalizeColumnName(s string) string {
	return textnorm.CollapseSpaces(textnorm.Fold(s))
}

// ColumnMap is the resolved header: field -> column index.
type ColumnMap map[field]int

// MapHeader resolves the aliases against a header row. A usable header needs at least a code or
// description column plus a price column.
func MapHeader(row []string) (ColumnMap, bool) {
	names := make([]string, len(row))
	for i, c := range row {
		names[i] = NormalizeColumnName(c)
	}
	cm := ColumnMap{}
	used := map[int]bool{}
	for _, fa := range ColumnAliases {
		for _, alias := range fa.Aliases {
			col := indexOf(names, alias, used)
			if col >= 0 {
				cm[fa.Field] = col
				used[col] = true
				break
			}
		}
	}
	_, hasCode := cm[fieldCode]
	_, hasDesc := cm[fieldDescription]
	_, hasPrice := cm[fieldPrice]
	return cm, hasPrice && (hasCode || hasDesc)
}

func indexOf(names []string, alias string, used map[int]bool) int {
	for i, n := range names {
		if n == alias && !used[i] {
			return i
		}
	}
	return -1
}

// Rows reads product rows out of a table. With a recognizable header, columns are mapped by
// name; otherwise the first column is the code, the last the price and the rest the description.
// Positional rows also need a digit in the code and a price of at least minPrice;
// minPrice < 0 selects DefaultMinPrice.
func Rows(rows [][]string, minPrice float64) []entity.RawRecord {
	if minPrice < 0 {
		minPrice = DefaultMinPrice
	}
	start, cm := 0, ColumnMap(nil)
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		if m, ok := MapHeader(rows[i]); ok {
			start, cm = i+1, m
			break
		}
	}

	var out []entity.RawRecord
	for _, row := range rows[start:] {
		var rec entity.RawRecord
		var ok bool
		if cm != nil {
			rec, ok = mappedRow(row, cm)
		} else {
			rec, ok = positionalRow(row, minPrice)
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

func mappedRow(row []string, cm ColumnMap) (entity.RawRecord, bool) {
	get := func(f field) string {
		col, ok := cm[f]
		if !ok || col >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[col])
	}
	rec := entity.RawRecord{
		Code:        get(fieldCode),
		Description: get(fieldDescription),
		Unit:        get(fieldUnit),
		Category:    get(fieldCategory),
		Application: get(fieldApplication),
		Content:     get(fieldContent),
	}
	if rec.Code == "" {
		// Lists without a code column are keyed by the first cell.
		rec.Code = firstNonEmpty(row)
	}
	if s := get(fieldStock); s != "" {
		rec.Stock = s
	}
	return finishRow(rec, get(fieldPrice), strings.Join(row, " "))
}

func positionalRow(row []string, minPrice float64) (entity.RawRecord, bool) {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	if len(cells) < 2 {
		return entity.RawRecord{}, false
	}
	if !strings.ContainsFunc(cells[0], unicode.IsDigit) {
		return entity.RawRecord{}, false
	}
	rec := entity.RawRecord{
		Code:        cells[0],
		Description: strings.Join(cells[1:len(cells)-1], " "),
	}
	rec, ok := finishRow(rec, cells[len(cells)-1], strings.Join(cells, " "))
	amount, priced := rec.Price.(string)
	if !ok || !priced {
		return rec, ok
	}
	if price, parsed := normalize.ParsePriceString(amount); !parsed || price < minPrice {
		return entity.RawRecord{}, false
	}
	return rec, true
}

func finishRow(rec entity.RawRecord, priceCell, whole string) (entity.RawRecord, bool) {
	if rec.Code == "" {
		return rec, false
	}
	rec.NoStock = reNoStockRaw.MatchString(whole)
	if m := rePriceCell.FindStringSubmatch(priceCell); m != nil {
		rec.Price = m[1]
	} else if rec.NoStock && !strings.ContainsAny(priceCell, "0123456789") {
		rec.Price = 0
	} else {
		return rec, false
	}
	rec.Description = trimDescription(reNoStockRaw.ReplaceAllString(rec.Description, " "))
	return rec, true
}

func firstNonEmpty(row []string) string {
	for _, c := range row {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}
